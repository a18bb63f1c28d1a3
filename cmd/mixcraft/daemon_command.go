package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"mixcraft/internal/chatlog"
	"mixcraft/internal/config"
	"mixcraft/internal/daemon"
	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/preflight"
	"mixcraft/internal/store"
	"mixcraft/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the result consumer and API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, result := range failed {
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
				logging.String(logging.FieldErrorHint, "run `mixcraft check` for the full report"),
			)
			names = append(names, result.Name)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	var client *redis.Client
	if strings.EqualFold(cfg.Queue.Backend, "redis") || usesRedisChat(cfg) {
		client = jobs.NewRedisClient(cfg.Redis)
	}
	queue, err := jobs.Open(signalCtx, cfg, client)
	if err != nil {
		if client != nil {
			_ = client.Close()
		}
		return err
	}
	defer func() {
		_ = queue.Close()
		if client != nil {
			// The redis queue already closed the shared client; the
			// second close only matters for the memory queue.
			_ = client.Close()
		}
	}()

	var hub *notifications.Hub
	if cfg.Notifications.Websocket {
		hub = notifications.NewHub(logger)
	}

	workflowManager := workflow.NewManager(cfg, st, queue, logger, workflowOptions(cfg, client, hub)...)

	d, err := daemon.New(cfg, st, logger, workflowManager, hub)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("mixcraft daemon shutting down")
	return nil
}

// workflowOptions assembles the chat history and notification fan-out the
// daemon hands to the manager.
func workflowOptions(cfg *config.Config, client *redis.Client, hub *notifications.Hub) []workflow.Option {
	var opts []workflow.Option
	if client != nil && usesRedisChat(cfg) {
		opts = append(opts, chatLogOption(cfg, client))
	}
	opts = append(opts, workflow.WithNotifier(buildNotifier(cfg, hub)))
	return opts
}

func usesRedisChat(cfg *config.Config) bool {
	return strings.EqualFold(cfg.Chat.Backend, "redis")
}

func chatLogOption(cfg *config.Config, client *redis.Client) workflow.Option {
	ttl := time.Duration(cfg.Chat.TTLHours) * time.Hour
	return workflow.WithChatLog(chatlog.NewRedisLog(client, cfg.Redis.ChatPrefix, cfg.Chat.HistoryLimit, ttl))
}

func buildNotifier(cfg *config.Config, hub *notifications.Hub) notifications.Service {
	notifier := notifications.NewService(cfg)
	if hub != nil {
		notifier = notifications.Multi(notifier, hub)
	}
	if !cfg.Notifications.Progress {
		notifier = notifications.Without(notifier, notifications.EventProgress)
	}
	return notifier
}
