package models

import "time"

// GeneralConfig 对应配置文件的 [general] 段。
type GeneralConfig struct {
	AutoConfirm        bool   `toml:"auto_confirm"`
	Verbose            bool   `toml:"verbose"`
	PreferredInstaller string `toml:"preferred_installer"` // auto 或具体后端名称
}

// DownloadConfig 对应配置文件的 [download] 段。
type DownloadConfig struct {
	VerifyChecksum bool `toml:"verify_checksum"`
	MaxRetries     int  `toml:"max_retries"`
	Timeout        int  `toml:"timeout"` // 单次网络请求超时，秒
}

// TUIConfig 对应配置文件的 [tui] 段。
type TUIConfig struct {
	Theme           string `toml:"theme"`
	ShowEOLVersions bool   `toml:"show_eol_versions"`
}

// Config 保存 pyvm 的全部配置，缺省文件等价于全部默认值。
type Config struct {
	General  GeneralConfig  `toml:"general"`
	Download DownloadConfig `toml:"download"`
	TUI      TUIConfig      `toml:"tui"`
}

// DefaultConfig 返回各配置项的文档化默认值。
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			AutoConfirm:        false,
			Verbose:            false,
			PreferredInstaller: "auto",
		},
		Download: DownloadConfig{
			VerifyChecksum: true,
			MaxRetries:     3,
			Timeout:        120,
		},
		TUI: TUIConfig{
			Theme:           "dark",
			ShowEOLVersions: false,
		},
	}
}

// RequestTimeout 将 download.timeout 换算为时间间隔。
func (c Config) RequestTimeout() time.Duration {
	if c.Download.Timeout <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Download.Timeout) * time.Second
}
