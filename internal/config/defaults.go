package config

const (
	defaultDataDir             = "~/.local/share/mixcraft"
	defaultLogDir              = "~/.local/share/mixcraft/logs"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultRedisAddr           = "127.0.0.1:6379"
	defaultJobList             = "mixcraft:jobs"
	defaultResultList          = "mixcraft:results"
	defaultProcessingList      = "mixcraft:results:processing"
	defaultChatPrefix          = "mixcraft:chat:"
	defaultBlockTimeoutSeconds = 5
	defaultQueueBackend        = "redis"
	defaultChatBackend         = "memory"
	defaultChatHistoryLimit    = 10
	defaultChatTTLHours        = 24
	defaultMixProfile          = "mix"
	defaultDraftProfile        = "draft"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogMaxSizeMB        = 50
	defaultLogMaxBackups       = 5
	defaultLogMaxAgeDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Redis: Redis{
			Addr:                defaultRedisAddr,
			JobList:             defaultJobList,
			ResultList:          defaultResultList,
			ProcessingList:      defaultProcessingList,
			ChatPrefix:          defaultChatPrefix,
			BlockTimeoutSeconds: defaultBlockTimeoutSeconds,
		},
		Queue: Queue{
			Backend: defaultQueueBackend,
		},
		Chat: Chat{
			Backend:      defaultChatBackend,
			HistoryLimit: defaultChatHistoryLimit,
			TTLHours:     defaultChatTTLHours,
		},
		Scoring: Scoring{
			MixProfile:   defaultMixProfile,
			DraftProfile: defaultDraftProfile,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Websocket:      true,
			Progress:       true,
			Completions:    true,
			Errors:         true,
		},
		Workflow: Workflow{
			ErrorRetryInterval: 10,
			ProgressBucket:     5,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
