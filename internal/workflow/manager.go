package workflow

import (
	"log/slog"
	"sync"
	"time"

	"mixcraft/internal/chatlog"
	"mixcraft/internal/compat"
	"mixcraft/internal/config"
	"mixcraft/internal/jobs"
	"mixcraft/internal/logging"
	"mixcraft/internal/notifications"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/store"
)

// Manager coordinates pipeline actions and consumes worker results.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	queue    jobs.Queue
	chat     chatlog.Log
	logger   *slog.Logger
	notifier notifications.Service
	locks    *pipeline.Locker
	sampler  *logging.ProgressSampler

	mixProfile   compat.Profile
	draftProfile compat.Profile

	blockTimeout time.Duration
	retryDelay   time.Duration

	mu         sync.RWMutex
	running    bool
	cancel     func()
	wg         sync.WaitGroup
	lastErr    error
	lastResult *jobs.Result
	processed  int
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithNotifier replaces the notifier built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithChatLog replaces the in-memory conversation log.
func WithChatLog(log chatlog.Log) Option {
	return func(m *Manager) {
		if log != nil {
			m.chat = log
		}
	}
}

// NewManager constructs a workflow manager.
func NewManager(cfg *config.Config, st *store.Store, queue jobs.Queue, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	mixProfile, err := compat.ProfileByName(cfg.Scoring.MixProfile)
	if err != nil {
		mixProfile = compat.ProfileMix
	}
	draftProfile, err := compat.ProfileByName(cfg.Scoring.DraftProfile)
	if err != nil {
		draftProfile = compat.ProfileDraft
	}
	blockTimeout := time.Duration(cfg.Redis.BlockTimeoutSeconds) * time.Second
	if blockTimeout <= 0 {
		blockTimeout = 5 * time.Second
	}
	retryDelay := time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second
	if retryDelay <= 0 {
		retryDelay = 10 * time.Second
	}

	m := &Manager{
		cfg:          cfg,
		store:        st,
		queue:        queue,
		chat:         chatlog.NewMemoryLog(cfg.Chat.HistoryLimit),
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:     notifications.NewService(cfg),
		locks:        pipeline.NewLocker(),
		sampler:      logging.NewProgressSampler(float64(cfg.Workflow.ProgressBucket)),
		mixProfile:   mixProfile,
		draftProfile: draftProfile,
		blockTimeout: blockTimeout,
		retryDelay:   retryDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lock enters the entity's critical section.
func (m *Manager) lock(kind pipeline.EntityKind, id string) func() {
	return m.locks.Lock(pipeline.LockKey(kind, id))
}
