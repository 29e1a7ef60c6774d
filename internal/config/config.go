package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	DefaultConfigFileName = "config.toml"
	DefaultDBName         = "todo.db"
	DefaultLogName        = "todosync.log"
	DefaultTimeout        = "15s"

	appDirName = "todosync"
)

const (
	BackendAppwrite = "appwrite"
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
)

type Keymap struct {
	Quit    string `toml:"quit"`
	Add     string `toml:"add"`
	Up      string `toml:"up"`
	Down    string `toml:"down"`
	Toggle  string `toml:"toggle"`
	Delete  string `toml:"delete"`
	Edit    string `toml:"edit"`
	Refresh string `toml:"refresh"`
	Confirm string `toml:"confirm"`
	Cancel  string `toml:"cancel"`
}

type Appwrite struct {
	Endpoint string `toml:"endpoint"`
	Project  string `toml:"project"`
	APIKey   string `toml:"api_key"`
}

type Mongo struct {
	URI string `toml:"uri"`
}

type SQLite struct {
	Path string `toml:"path"`
}

type Log struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

type Config struct {
	Backend        string   `toml:"backend"`
	DatabaseID     string   `toml:"database_id"`
	CollectionID   string   `toml:"collection_id"`
	RequestTimeout string   `toml:"request_timeout"`
	Appwrite       Appwrite `toml:"appwrite"`
	Mongo          Mongo    `toml:"mongo"`
	SQLite         SQLite   `toml:"sqlite"`
	Log            Log      `toml:"log"`
	Keys           Keymap   `toml:"keys"`
}

// ResolveConfigPath picks the config file location: $TODOSYNC_CONFIG, then
// the XDG config dir, then ~/.config.
func ResolveConfigPath() string {
	if p := strings.TrimSpace(os.Getenv("TODOSYNC_CONFIG")); p != "" {
		return expandPath(p)
	}
	return filepath.Join(configDir(), DefaultConfigFileName)
}

func configDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appDirName)
}

// LoadOrCreate reads path, writing the defaults there first if it does not
// exist. Environment overrides are applied after the file.
func LoadOrCreate(path string) (Config, error) {
	cfg := defaultConfig(filepath.Dir(path))
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
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfigFormat, err)
	}
	fillDefaults(&cfg, filepath.Dir(path))
	applyEnv(&cfg)
	return cfg, nil
}

// Timeout returns the per-request timeout, falling back to the default
// when unset or unparsable.
func (c Config) Timeout() time.Duration {
	if d, err := time.ParseDuration(c.RequestTimeout); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultTimeout)
	return d
}

// Validate checks the fields the selected backend needs.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseID) == "" {
		return ErrMissingDatabaseID
	}
	if strings.TrimSpace(c.CollectionID) == "" {
		return ErrMissingCollectionID
	}
	if c.RequestTimeout != "" {
		if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTimeout, err)
		}
	}
	switch c.Backend {
	case BackendAppwrite:
		if strings.TrimSpace(c.Appwrite.Endpoint) == "" {
			return ErrMissingEndpoint
		}
		if strings.TrimSpace(c.Appwrite.Project) == "" {
			return ErrMissingProject
		}
	case BackendMongo:
		if strings.TrimSpace(c.Mongo.URI) == "" {
			return ErrMissingMongoURI
		}
	case BackendSQLite:
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return ErrMissingDBPath
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	return nil
}

func write(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TODOSYNC_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TODOSYNC_APPWRITE_ENDPOINT"); v != "" {
		cfg.Appwrite.Endpoint = v
	}
	if v := os.Getenv("TODOSYNC_APPWRITE_PROJECT"); v != "" {
		cfg.Appwrite.Project = v
	}
	if v := os.Getenv("TODOSYNC_APPWRITE_KEY"); v != "" {
		cfg.Appwrite.APIKey = v
	}
	if v := os.Getenv("TODOSYNC_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
}

func fillDefaults(cfg *Config, dir string) {
	def := defaultConfig(dir)
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = def.Backend
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = def.SQLite.Path
	}
	cfg.SQLite.Path = expandPath(cfg.SQLite.Path)
	if cfg.Log.Path == "" {
		cfg.Log.Path = def.Log.Path
	}
	cfg.Log.Path = expandPath(cfg.Log.Path)
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	fillKeys(&cfg.Keys, def.Keys)
}

func fillKeys(k *Keymap, def Keymap) {
	set := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	set(&k.Quit, def.Quit)
	set(&k.Add, def.Add)
	set(&k.Up, def.Up)
	set(&k.Down, def.Down)
	set(&k.Toggle, def.Toggle)
	set(&k.Delete, def.Delete)
	set(&k.Edit, def.Edit)
	set(&k.Refresh, def.Refresh)
	set(&k.Confirm, def.Confirm)
	set(&k.Cancel, def.Cancel)
}

func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
	}
	return p
}

func defaultConfig(dir string) Config {
	return Config{
		Backend:        BackendSQLite,
		DatabaseID:     "todos",
		CollectionID:   "items",
		RequestTimeout: DefaultTimeout,
		Appwrite: Appwrite{
			Endpoint: "https://cloud.appwrite.io/v1",
		},
		Mongo: Mongo{
			URI: "mongodb://localhost:27017",
		},
		SQLite: SQLite{
			Path: filepath.Join(dir, DefaultDBName),
		},
		Log: Log{
			Path:  filepath.Join(dir, DefaultLogName),
			Level: "info",
		},
		Keys: Keymap{
			Quit:    "q",
			Add:     "a",
			Up:      "k",
			Down:    "j",
			Toggle:  " ",
			Delete:  "d",
			Edit:    "e",
			Refresh: "r",
			Confirm: "enter",
			Cancel:  "esc",
		},
	}
}
