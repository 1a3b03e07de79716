package config

const (
	defaultDataDir             = "~/.local/share/arkline"
	defaultLogDir              = "~/.local/share/arkline/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultWorkerCount         = 4
	defaultMintMaxAttempts     = 5
	defaultIdentifierLength    = 15
	defaultAvailableYearOffset = 1
	defaultHandleAdminIndex    = 300
	defaultHandleTimeout       = 30
	defaultArkShoulder         = "/r1"
	defaultArkTimeout          = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Handle: Handle{
			AdminIndex:     defaultHandleAdminIndex,
			TimeoutSeconds: defaultHandleTimeout,
		},
		Ark: Ark{
			Shoulder:       defaultArkShoulder,
			TimeoutSeconds: defaultArkTimeout,
		},
		Pipeline: Pipeline{
			WorkerCount:      defaultWorkerCount,
			MintMaxAttempts:  defaultMintMaxAttempts,
			IdentifierLength: defaultIdentifierLength,
		},
		Defaults: Defaults{
			AvailableYearOffset: defaultAvailableYearOffset,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
