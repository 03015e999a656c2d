// Package config loads server settings from defaults, an optional YAML file,
// environment variables and command-line flags, in rising precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileName = "item-server"
	configFileType = "yaml"

	KeyHost            = "host"
	KeyPort            = "port"
	KeyDataDir         = "data_dir"
	KeyStoreBackend    = "store_backend"
	KeyAllowedOrigins  = "allowed_origins"
	KeyLogLevel        = "log_level"
	KeySerializeWrites = "serialize_writes"
)

// Config is the resolved server configuration.
type Config struct {
	Host            string
	Port            string
	DataDir         string
	StoreBackend    string
	AllowedOrigins  []string
	LogLevel        slog.Level
	SerializeWrites bool
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"host":             KeyHost,
	"port":             KeyPort,
	"data-dir":         KeyDataDir,
	"store-backend":    KeyStoreBackend,
	"allowed-origins":  KeyAllowedOrigins,
	"log-level":        KeyLogLevel,
	"serialize-writes": KeySerializeWrites,
}

// RegisterFlags adds one flag per config key to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("host", "0.0.0.0", "interface to listen on (env HOST)")
	fs.String("port", "8080", "port to listen on (env PORT)")
	fs.String("data-dir", "./data", "directory holding the item data (env DATA_DIR)")
	fs.String("store-backend", "csv", "store backend: csv, json, sqlite or memory (env STORE_BACKEND)")
	fs.String("allowed-origins", "*", "comma separated CORS origins (env ALLOWED_ORIGINS)")
	fs.String("log-level", "info", "debug, info, warn or error (env LOG_LEVEL)")
	fs.Bool("serialize-writes", false, "serialize every item operation behind one lock (env SERIALIZE_WRITES)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyHost, "0.0.0.0")
	v.SetDefault(KeyPort, "8080")
	v.SetDefault(KeyDataDir, "./data")
	v.SetDefault(KeyStoreBackend, "csv")
	v.SetDefault(KeyAllowedOrigins, "*")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySerializeWrites, false)
}

// Load resolves the configuration. configFile may be empty, in which case
// item-server.yaml is looked up in the working directory and skipped when
// absent. fs may be nil; only flags that were set on the command line
// override other sources.
func Load(configFile string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	// HOST, PORT, DATA_DIR, ...
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	cfg := Config{
		Host:            v.GetString(KeyHost),
		Port:            v.GetString(KeyPort),
		DataDir:         v.GetString(KeyDataDir),
		StoreBackend:    v.GetString(KeyStoreBackend),
		AllowedOrigins:  originList(v.Get(KeyAllowedOrigins)),
		SerializeWrites: v.GetBool(KeySerializeWrites),
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	if cfg.Port == "" {
		return Config{}, errors.New("port must not be empty")
	}
	return cfg, nil
}

// originList accepts a YAML list or a comma separated string.
func originList(raw any) []string {
	switch val := raw.(type) {
	case []any:
		var out []string
		for _, o := range val {
			out = append(out, splitList(fmt.Sprint(o))...)
		}
		return out
	case []string:
		var out []string
		for _, o := range val {
			out = append(out, splitList(o)...)
		}
		return out
	case string:
		return splitList(val)
	case nil:
		return nil
	default:
		return splitList(fmt.Sprint(val))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
