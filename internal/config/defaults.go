package config

const (
	defaultConfigPath                = "~/.config/reelforge/config.toml"
	defaultDataDir                   = "~/.local/share/reelforge"
	defaultOutputDir                 = "~/Videos/reelforge"
	defaultLogDir                    = "~/.local/share/reelforge/logs"
	defaultInboxDir                  = "~/.local/share/reelforge/inbox"
	defaultAPIBind                   = "127.0.0.1:7490"
	defaultDashScopeBaseURL          = "https://dashscope.aliyuncs.com/api/v1"
	defaultTTSModel                  = "qwen3-tts-flash"
	defaultASRModel                  = "paraformer-v2"
	defaultLanguage                  = "Chinese"
	defaultEvolinkBaseURL            = "https://api.evolink.ai/v1"
	defaultEvolinkModel              = "doubao-seedream-4.0"
	defaultEvolinkSize               = "1024x1024"
	defaultEvolinkPollInterval       = 1
	defaultEvolinkPollAttempts       = 60
	defaultRemoveBGURL               = "https://api.remove.bg/v1.0/removebg"
	defaultLocalMattingCommand       = "rembg"
	defaultProviderTimeout           = 60
	defaultLocalMattingTimeout       = 120
	defaultVoice                     = "Ethan"
	defaultCharacterImage            = "https://cdnv2.ruguoapp.com/Fqrfh4Ix879kG9SgXtm9R9zk-uTiv3.png?imageMogr2/auto-orient/thumbnail/400x2000%3E"
	defaultMatting                   = "auto"
	defaultConcurrency               = 10
	defaultTranscriptionPollInterval = 2
	defaultTranscriptionPollAttempts = 30
	defaultWatchConcurrency          = 1
	defaultWatermark                 = "反叛心理"
	defaultHeaderLeft                = "反内耗 | 反脆弱 | 反玻璃心"
	defaultHeaderRight               = "咱不负责安慰 | 咱只提供真相"
	defaultMusicVolume               = 0.2
	defaultSubtitleFontSize          = 4
	defaultSubtitleColor             = "#ffffff"
	defaultSubtitleBackgroundOpacity = 0.7
	defaultWidth                     = 1920
	defaultHeight                    = 1080
	defaultFPS                       = 30
	defaultSampleRate                = 48000
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
)

// DefaultContainers is the container/codec preference order used when the
// recording section does not override it.
var DefaultContainers = []string{
	"video/mp4;codecs=avc1,mp4a.40.2",
	"video/mp4",
	"video/webm;codecs=vp9",
	"video/webm;codecs=vp8",
	"video/webm;codecs=h264",
	"video/webm",
}

// DefaultLocalMattingArgs runs rembg in single-image mode.
var DefaultLocalMattingArgs = []string{"i", "{input}", "{output}"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			InboxDir:  defaultInboxDir,
			APIBind:   defaultAPIBind,
		},
		DashScope: DashScope{
			BaseURL:        defaultDashScopeBaseURL,
			TTSModel:       defaultTTSModel,
			ASRModel:       defaultASRModel,
			Language:       defaultLanguage,
			LanguageHints:  []string{"zh"},
			TimeoutSeconds: defaultProviderTimeout,
		},
		Evolink: Evolink{
			BaseURL:             defaultEvolinkBaseURL,
			Model:               defaultEvolinkModel,
			Size:                defaultEvolinkSize,
			PollIntervalSeconds: defaultEvolinkPollInterval,
			PollAttempts:        defaultEvolinkPollAttempts,
			TimeoutSeconds:      defaultProviderTimeout,
		},
		RemoveBG: RemoveBG{
			URL:            defaultRemoveBGURL,
			TimeoutSeconds: defaultProviderTimeout,
		},
		LocalMatting: LocalMatting{
			Command:        defaultLocalMattingCommand,
			Args:           append([]string(nil), DefaultLocalMattingArgs...),
			TimeoutSeconds: defaultLocalMattingTimeout,
		},
		Pipeline: Pipeline{
			Voice:                            defaultVoice,
			CharacterImage:                   defaultCharacterImage,
			Model:                            defaultEvolinkModel,
			Matting:                          defaultMatting,
			IllustrationConcurrency:          defaultConcurrency,
			MattingConcurrency:               defaultConcurrency,
			TranscriptionPollIntervalSeconds: defaultTranscriptionPollInterval,
			TranscriptionPollAttempts:        defaultTranscriptionPollAttempts,
			WatchConcurrency:                 defaultWatchConcurrency,
		},
		Style: Style{
			Watermark:                 defaultWatermark,
			HeaderLeft:                defaultHeaderLeft,
			HeaderRight:               defaultHeaderRight,
			MusicVolume:               defaultMusicVolume,
			SubtitleFontSize:          defaultSubtitleFontSize,
			SubtitleColor:             defaultSubtitleColor,
			SubtitleBackgroundOpacity: defaultSubtitleBackgroundOpacity,
		},
		Recording: Recording{
			Width:         defaultWidth,
			Height:        defaultHeight,
			FPS:           defaultFPS,
			SampleRate:    defaultSampleRate,
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
			FFplayBinary:  "ffplay",
			Containers:    append([]string(nil), DefaultContainers...),
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			RunComplete:    true,
			RunFailed:      true,
			Recording:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
