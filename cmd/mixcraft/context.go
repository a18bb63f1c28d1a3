package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mixcraft/internal/config"
	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/services"
	"mixcraft/internal/store"
	"mixcraft/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// withStore opens the database for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st)
}

// withManager runs fn against a manager bound to the local store. Commands
// that only rescore never submit jobs, so the queue is in-memory and
// nothing is sent to workers. Chat history comes from Redis when configured
// so the daemon's conversations are visible.
func (c *commandContext) withManager(fn func(*workflow.Manager, *store.Store) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		opts := []workflow.Option{workflow.WithNotifier(notifications.Noop())}
		if usesRedisChat(cfg) {
			client := jobs.NewRedisClient(cfg.Redis)
			defer client.Close()
			opts = append(opts, chatLogOption(cfg, client))
		}
		mgr := workflow.NewManager(cfg, st, jobs.NewMemoryQueue(), logging.NewNop(), opts...)
		return fn(mgr, st)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// describeError appends a next step for the error kinds an operator can act on.
func describeError(err error) error {
	switch services.Kind(err) {
	case "not_found":
		return fmt.Errorf("%w (check the ID with `mixcraft project list` or `mixcraft draft list`)", err)
	case "conflict":
		return fmt.Errorf("%w (wait for the running stage to finish)", err)
	default:
		return err
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
