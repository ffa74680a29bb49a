package config

const (
	defaultWorkspaceRoot    = "~/.local/share/captions/workspaces"
	defaultLogDir           = "~/.local/share/captions/logs"
	defaultAPIBind          = "127.0.0.1:8000"
	defaultScrapeBinary     = "yt-dlp"
	defaultTranscribeBinary = "whisper"
	defaultSubtitleLang     = "en"
	defaultSleepRequests    = 1
	defaultMaxDownloads     = 400
	defaultTranscribeModel  = "medium"
	defaultLanguage         = "en"
	defaultWorkerCount      = 2
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot: defaultWorkspaceRoot,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
		},
		Scrape: Scrape{
			Binary:        defaultScrapeBinary,
			SubtitleLang:  defaultSubtitleLang,
			SleepRequests: defaultSleepRequests,
			MaxDownloads:  defaultMaxDownloads,
		},
		Transcribe: Transcribe{
			Binary:   defaultTranscribeBinary,
			Model:    defaultTranscribeModel,
			Language: defaultLanguage,
		},
		Workflow: Workflow{
			WorkerCount: defaultWorkerCount,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
