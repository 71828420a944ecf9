package config

const (
	defaultWorkspace          = "~/.local/share/lingoflow/workspace"
	defaultUploadsCache       = "~/.local/share/lingoflow/uploads"
	defaultCoversDir          = "~/.local/share/lingoflow/covers"
	defaultLogDir             = "~/.local/share/lingoflow/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLLMBaseURL         = "https://api.openai.com/v1"
	defaultLLMModel           = "gpt-4o-mini"
	defaultLLMTimeoutSeconds  = 60
	defaultLLMJSONAttempts    = 3
	defaultLLMBudgetSeconds   = 300
	defaultMaxResults         = 5
	defaultMaxDurationSec     = 1000000
	defaultPublishedAfterDays = 365
	defaultSearchRegion       = "US"
	defaultTargetLanguage     = "简体中文"
	defaultResolution         = "1080"
	defaultPollIntervalSec    = 3
	defaultPollTimeoutSec     = 36000
	defaultUploadAttempts     = 3
	defaultUploadBackoffSec   = 20
	defaultTitleTemplate      = "[中字翻译] {title}"
)

const defaultDescTemplate = `{title_zh}
-----------------------
本视频由VideoLingo提供字幕。
原视频标题: {title_en}
原视频链接: {video_url}
描述: {desc}
`

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		Paths: Paths{
			Workspace:    defaultWorkspace,
			UploadsCache: defaultUploadsCache,
			Covers:       defaultCoversDir,
			LogDir:       defaultLogDir,
		},
		LLM: LLM{
			BaseURL:            defaultLLMBaseURL,
			Model:              defaultLLMModel,
			TimeoutSeconds:     defaultLLMTimeoutSeconds,
			JSONAttempts:       defaultLLMJSONAttempts,
			TotalBudgetSeconds: defaultLLMBudgetSeconds,
		},
		YouTube: YouTube{
			MaxResultsPerKeyword: defaultMaxResults,
			MaxDurationSec:       defaultMaxDurationSec,
			PublishedAfterDays:   defaultPublishedAfterDays,
			SearchRegion:         defaultSearchRegion,
		},
		Processing: Processing{
			TargetLanguage: defaultTargetLanguage,
			BurnSubtitles:  true,
			Resolution:     defaultResolution,
			CleanupRemote:  true,
		},
		Poll: Poll{
			IntervalSec: defaultPollIntervalSec,
			TimeoutSec:  defaultPollTimeoutSec,
		},
		Upload: Upload{
			RetryAttempts:   defaultUploadAttempts,
			RetryBackoffSec: defaultUploadBackoffSec,
		},
		Templates: Templates{
			Title: defaultTitleTemplate,
			Desc:  defaultDescTemplate,
		},
	}
}
