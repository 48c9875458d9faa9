package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "tasks.db"
	DefaultAlarmDBName    = "alarms.db"
	DefaultLogName        = "taskapp.log"
	DefaultAlarmGrace     = "10m"
)

type Keymap struct {
	Quit    string `toml:"quit"`
	Add     string `toml:"add"`
	Up      string `toml:"up"`
	Down    string `toml:"down"`
	Delete  string `toml:"delete"`
	Edit    string `toml:"edit"`
	Search  string `toml:"search"`
	Detail  string `toml:"detail"`
	Confirm string `toml:"confirm"`
	Cancel  string `toml:"cancel"`
}

type Config struct {
	DBPath        string `toml:"db_path"`
	AlarmDBPath   string `toml:"alarm_db_path"`
	LogPath       string `toml:"log_path"`
	LogLevel      string `toml:"log_level"`
	LogEncoding   string `toml:"log_encoding"`
	Notifications bool   `toml:"notifications"`
	AlarmGrace    string `toml:"alarm_grace"`
	Keys          Keymap `toml:"keys"`
}

// ResolveConfigPath picks the config file: an explicit flag value, then
// TASKAPP_CONFIG, then config.toml in the working directory.
func ResolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("TASKAPP_CONFIG"); v != "" {
		return v
	}
	return DefaultConfigFileName
}

// LoadOrCreate reads the config at path, writing defaults there first if the
// file does not exist. Environment overrides (optionally from .env) win over
// file values.
func LoadOrCreate(path string) (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := write(path, cfg); err != nil {
			return cfg, err
		}
		applyEnv(&cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBName
	}
	if cfg.AlarmDBPath == "" {
		cfg.AlarmDBPath = DefaultAlarmDBName
	}
	fillKeys(&cfg.Keys)
	applyEnv(&cfg)
	return cfg, nil
}

// Grace is how late a reminder may fire after its due moment before it is dropped.
func (c Config) Grace() time.Duration {
	d, err := time.ParseDuration(c.AlarmGrace)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(DefaultAlarmGrace)
	}
	return d
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TASKAPP_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TASKAPP_ALARM_DB_PATH"); v != "" {
		cfg.AlarmDBPath = v
	}
	if v := os.Getenv("TASKAPP_LOG_PATH"); v != "" {
		cfg.LogPath = v
	}
	if v := os.Getenv("TASKAPP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("TASKAPP_NOTIFICATIONS"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Notifications = parsed
		}
	}
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// fillKeys restores bindings a hand-edited file left blank.
func fillKeys(k *Keymap) {
	d := Default().Keys
	pairs := []struct {
		dst *string
		def string
	}{
		{&k.Quit, d.Quit}, {&k.Add, d.Add}, {&k.Up, d.Up}, {&k.Down, d.Down},
		{&k.Delete, d.Delete}, {&k.Edit, d.Edit}, {&k.Search, d.Search},
		{&k.Detail, d.Detail}, {&k.Confirm, d.Confirm}, {&k.Cancel, d.Cancel},
	}
	for _, p := range pairs {
		if *p.dst == "" {
			*p.dst = p.def
		}
	}
}

// Default returns the configuration written on first launch.
func Default() Config {
	return Config{
		DBPath:        DefaultDBName,
		AlarmDBPath:   DefaultAlarmDBName,
		LogPath:       DefaultLogName,
		LogLevel:      "info",
		LogEncoding:   "console",
		Notifications: true,
		AlarmGrace:    DefaultAlarmGrace,
		Keys: Keymap{
			Quit:    "q",
			Add:     "a",
			Up:      "k",
			Down:    "j",
			Delete:  "d",
			Edit:    "e",
			Search:  "/",
			Detail:  "i",
			Confirm: "enter",
			Cancel:  "esc",
		},
	}
}
