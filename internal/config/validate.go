package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateChat(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("queue.backend must be redis or memory, got %q", c.Queue.Backend)
	}
	if c.Redis.BlockTimeoutSeconds < 0 {
		return errors.New("redis.block_timeout_seconds must be non-negative")
	}
	if c.Redis.DB < 0 {
		return errors.New("redis.db must be non-negative")
	}
	if c.Redis.ResultList == c.Redis.ProcessingList {
		return errors.New("redis.result_list and redis.processing_list must differ")
	}
	return nil
}

func (c *Config) validateChat() error {
	switch c.Chat.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("chat.backend must be redis or memory, got %q", c.Chat.Backend)
	}
	if c.Chat.HistoryLimit <= 0 {
		return errors.New("chat.history_limit must be positive")
	}
	if c.Chat.TTLHours < 0 {
		return errors.New("chat.ttl_hours must be non-negative")
	}
	return nil
}

func (c *Config) validateScoring() error {
	for key, value := range map[string]string{
		"scoring.mix_profile":   c.Scoring.MixProfile,
		"scoring.draft_profile": c.Scoring.DraftProfile,
	} {
		switch value {
		case "mix", "draft":
		default:
			return fmt.Errorf("%s must be mix or draft, got %q", key, value)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.ProgressBucket <= 0 || c.Workflow.ProgressBucket > 100 {
		return errors.New("workflow.progress_bucket must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB <= 0 {
		return errors.New("logging.max_size_mb must be positive")
	}
	if c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return errors.New("logging.max_backups and logging.max_age_days must be non-negative")
	}
	return nil
}
