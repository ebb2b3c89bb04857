package config

const (
	defaultWorkDir  = "~/.local/share/clipper/work"
	defaultPoolDir  = "~/.local/share/clipper/pool"
	defaultLogDir   = "~/.local/share/clipper/logs"
	defaultAPIBind  = "127.0.0.1:7519"
	defaultLogLevel = "info"
	defaultLogFmt   = "console"

	defaultRequestTimeout = 60
	defaultPollInterval   = 2
	defaultPollTimeout    = 900

	defaultPaddingSeconds    = 1.0
	defaultDurationTolerance = 2.0
	defaultKeyframeTolerance = 0.5
	defaultMaxCandidates     = 25
	defaultTargetAspect      = "9:16"
	defaultLanguage          = "en"

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultRecoveryInterval   = 120
	defaultStaleThreshold     = 300
	defaultJobTTLHours        = 72
	defaultCheckpointTTLHours = 168
	defaultSweepInterval      = 300
	defaultSweepMaxAge        = 3600
	defaultBackoffBase        = 2
	defaultBackoffMax         = 300

	defaultNtfyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			PoolDir: defaultPoolDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Services: Services{
			RequestTimeout: defaultRequestTimeout,
			PollInterval:   defaultPollInterval,
			PollTimeout:    defaultPollTimeout,
		},
		Pipeline: Pipeline{
			PaddingSeconds:    defaultPaddingSeconds,
			DurationTolerance: defaultDurationTolerance,
			KeyframeTolerance: defaultKeyframeTolerance,
			MaxCandidates:     defaultMaxCandidates,
			TargetAspect:      defaultTargetAspect,
			Language:          defaultLanguage,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			RecoveryInterval:   defaultRecoveryInterval,
			StaleThreshold:     defaultStaleThreshold,
			JobTTLHours:        defaultJobTTLHours,
			CheckpointTTLHours: defaultCheckpointTTLHours,
			SweepInterval:      defaultSweepInterval,
			SweepMaxAge:        defaultSweepMaxAge,
			BackoffBase:        defaultBackoffBase,
			BackoffMax:         defaultBackoffMax,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
		},
		Logging: Logging{
			Format: defaultLogFmt,
			Level:  defaultLogLevel,
		},
	}
}
