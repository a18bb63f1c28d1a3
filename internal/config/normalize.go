package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables consulted when the matching config value is empty.
const (
	EnvRedisAddr     = "MIXCRAFT_REDIS_ADDR"
	EnvRedisPassword = "MIXCRAFT_REDIS_PASSWORD"
	EnvNtfyTopic     = "MIXCRAFT_NTFY_TOPIC"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRedis()
	c.normalizeQueue()
	c.normalizeChat()
	c.normalizeScoring()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeRedis() {
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	if value, ok := os.LookupEnv(EnvRedisAddr); ok && strings.TrimSpace(value) != "" {
		if c.Redis.Addr == "" || c.Redis.Addr == defaultRedisAddr {
			c.Redis.Addr = strings.TrimSpace(value)
		}
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = defaultRedisAddr
	}
	if c.Redis.Password == "" {
		if value, ok := os.LookupEnv(EnvRedisPassword); ok {
			c.Redis.Password = value
		}
	}
	c.Redis.JobList = defaultString(c.Redis.JobList, defaultJobList)
	c.Redis.ResultList = defaultString(c.Redis.ResultList, defaultResultList)
	c.Redis.ProcessingList = defaultString(c.Redis.ProcessingList, defaultProcessingList)
	c.Redis.ChatPrefix = defaultString(c.Redis.ChatPrefix, defaultChatPrefix)
	if c.Redis.BlockTimeoutSeconds == 0 {
		c.Redis.BlockTimeoutSeconds = defaultBlockTimeoutSeconds
	}
}

func (c *Config) normalizeQueue() {
	c.Queue.Backend = defaultString(strings.ToLower(c.Queue.Backend), defaultQueueBackend)
}

func (c *Config) normalizeChat() {
	c.Chat.Backend = defaultString(strings.ToLower(c.Chat.Backend), defaultChatBackend)
	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = defaultChatHistoryLimit
	}
}

func (c *Config) normalizeScoring() {
	c.Scoring.MixProfile = defaultString(strings.ToLower(c.Scoring.MixProfile), defaultMixProfile)
	c.Scoring.DraftProfile = defaultString(strings.ToLower(c.Scoring.DraftProfile), defaultDraftProfile)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(EnvNtfyTopic); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = defaultString(strings.ToLower(c.Logging.Format), defaultLogFormat)
	c.Logging.Level = defaultString(strings.ToLower(c.Logging.Level), defaultLogLevel)
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
