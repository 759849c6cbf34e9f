package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Extractor    ExtractorConfig    `mapstructure:"extractor"`
	Download     DownloadConfig     `mapstructure:"download"`
	History      HistoryConfig      `mapstructure:"history"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ExtractorConfig contains settings for the external extraction binary
type ExtractorConfig struct {
	Binary       string `mapstructure:"binary"`
	AudioFormat  string `mapstructure:"audio_format"`
	AudioQuality string `mapstructure:"audio_quality"`
	CookieFile   string `mapstructure:"cookie_file"`
}

// DownloadConfig contains download and cleanup configuration
type DownloadConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	LogsDir string `mapstructure:"logs_dir"`
	// CleanupDelay is how long a delivered artifact stays on disk after it
	// has been fully streamed to the requester
	CleanupDelay time.Duration `mapstructure:"cleanup_delay"`
	// SourceRemoveDelay is the grace period before a playlist's per-track
	// directory is removed once the archive exists
	SourceRemoveDelay time.Duration `mapstructure:"source_remove_delay"`
}

// HistoryConfig contains job history persistence configuration
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// NotificationConfig contains desktop notification configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Extractor: ExtractorConfig{
			Binary:       "yt-dlp",
			AudioFormat:  "mp3",
			AudioQuality: "0",
		},
		Download: DownloadConfig{
			BaseDir:           "$HOME/Downloads/sc-fetch",
			LogsDir:           "$HOME/Downloads/sc-fetch/logs",
			CleanupDelay:      30 * time.Second,
			SourceRemoveDelay: 2 * time.Second,
		},
		History: HistoryConfig{
			DatabasePath: "$HOME/Downloads/sc-fetch/history.db",
		},
		Notification: NotificationConfig{
			Enabled: false,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
