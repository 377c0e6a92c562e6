package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/liangyou/pyvm/pkg/models"
)

// ErrCorrupt 表示配置文件无法解析，调用方应降级为默认配置。
var ErrCorrupt = errors.New("config: corrupt file")

// DefaultPath 返回配置文件的固定位置 ~/.config/pyvm/config.toml。
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".config", "pyvm", "config.toml"), nil
}

// Load 读取配置文件并与默认值合并。文件不存在等价于全部默认值；
// 文件损坏时同样返回默认值，并附带 ErrCorrupt 供调用方输出警告。
func Load(path string) (models.Config, error) {
	cfg := models.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return models.DefaultConfig(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return normalize(cfg), nil
}

// Save 将配置原子化写入指定路径，父目录按需创建。
func Save(path string, cfg models.Config) error {
	data, err := toml.Marshal(normalize(cfg))
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: prepare dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("config: replace file: %w", err)
	}
	return nil
}

// Init 在配置文件不存在时创建默认配置，已存在时不做任何修改。
func Init(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("config: stat file: %w", err)
	}
	if err := Save(path, models.DefaultConfig()); err != nil {
		return false, err
	}
	return true, nil
}

// Set 更新 "section.key" 形式指定的单个配置项，按字段类型解析 value。
func Set(cfg models.Config, key, value string) (models.Config, error) {
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("config: %s expects a boolean, got %q", key, value)
		}
		return b, nil
	}
	parsePositiveInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("config: %s expects a positive integer, got %q", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "general.auto_confirm":
		cfg.General.AutoConfirm, err = parseBool()
	case "general.verbose":
		cfg.General.Verbose, err = parseBool()
	case "general.preferred_installer":
		cfg.General.PreferredInstaller = value
	case "download.verify_checksum":
		cfg.Download.VerifyChecksum, err = parseBool()
	case "download.max_retries":
		cfg.Download.MaxRetries, err = parsePositiveInt()
	case "download.timeout":
		cfg.Download.Timeout, err = parsePositiveInt()
	case "tui.theme":
		cfg.TUI.Theme = value
	case "tui.show_eol_versions":
		cfg.TUI.ShowEOLVersions, err = parseBool()
	default:
		return cfg, fmt.Errorf("config: unknown key %q", key)
	}
	if err != nil {
		return cfg, err
	}
	return normalize(cfg), nil
}

func normalize(cfg models.Config) models.Config {
	if cfg.General.PreferredInstaller == "" {
		cfg.General.PreferredInstaller = "auto"
	}
	if cfg.Download.MaxRetries <= 0 {
		cfg.Download.MaxRetries = models.DefaultConfig().Download.MaxRetries
	}
	if cfg.Download.Timeout <= 0 {
		cfg.Download.Timeout = models.DefaultConfig().Download.Timeout
	}
	if cfg.TUI.Theme == "" {
		cfg.TUI.Theme = models.DefaultConfig().TUI.Theme
	}
	return cfg
}
