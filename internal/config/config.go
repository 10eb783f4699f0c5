package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultComet        = "0xc3d688B66703497DAA19211EEdff47f25384cdc3"
	DefaultConfigurator = "0x316f9708bB98af7dA9c68C1C3b5e79039cD336E3"
	DefaultCacheTTL     = 60 * time.Second
	DefaultInterval     = time.Minute
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL               string
	Offline              bool
	Comet                string
	Configurator         string
	ChainID              uint64
	AssetIndexes         []int
	UtilizationThreshold float64
	LiquidationBuffer    float64
	MaxPriceVolatility   float64
	CacheTTL             time.Duration
	LogLevel             string
	Out                  string
	PGDSN                string
	Interval             time.Duration
	MetricsAddr          string
}

// ConfigError reports a missing or malformed configuration value.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("COMETGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("offline", false)
	v.SetDefault("comet", DefaultComet)
	v.SetDefault("configurator", DefaultConfigurator)
	v.SetDefault("chain-id", uint64(1))
	v.SetDefault("utilization-threshold", 0.85)
	v.SetDefault("liquidation-buffer", 0.05)
	v.SetDefault("max-price-volatility", 0.1)
	v.SetDefault("cache-ttl", DefaultCacheTTL)
	v.SetDefault("log-level", "info")
	v.SetDefault("interval", DefaultInterval)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	indexes, err := getIntSlice(v, "asset-indexes")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:               v.GetString("rpc"),
		Offline:              v.GetBool("offline"),
		Comet:                v.GetString("comet"),
		Configurator:         v.GetString("configurator"),
		ChainID:              v.GetUint64("chain-id"),
		AssetIndexes:         indexes,
		UtilizationThreshold: v.GetFloat64("utilization-threshold"),
		LiquidationBuffer:    v.GetFloat64("liquidation-buffer"),
		MaxPriceVolatility:   v.GetFloat64("max-price-volatility"),
		CacheTTL:             v.GetDuration("cache-ttl"),
		LogLevel:             v.GetString("log-level"),
		Out:                  v.GetString("out"),
		PGDSN:                v.GetString("pg-dsn"),
		Interval:             v.GetDuration("interval"),
		MetricsAddr:          v.GetString("metrics-addr"),
	}

	return cfg, nil
}

// Validate checks values the core depends on.
func (c Config) Validate() error {
	if _, err := ParseAddress("comet", c.Comet); err != nil {
		return err
	}
	if c.Configurator != "" {
		if _, err := ParseAddress("configurator", c.Configurator); err != nil {
			return err
		}
	}
	if c.UtilizationThreshold <= 0 || c.UtilizationThreshold >= 1 {
		return &ConfigError{Key: "utilization-threshold", Reason: fmt.Sprintf("%v outside (0,1)", c.UtilizationThreshold)}
	}
	if c.LiquidationBuffer < 0 {
		return &ConfigError{Key: "liquidation-buffer", Reason: fmt.Sprintf("%v is negative", c.LiquidationBuffer)}
	}
	if c.CacheTTL <= 0 {
		return &ConfigError{Key: "cache-ttl", Reason: "must be positive"}
	}
	for _, idx := range c.AssetIndexes {
		if idx < 0 || idx > 255 {
			return &ConfigError{Key: "asset-indexes", Reason: fmt.Sprintf("index %d outside [0,255]", idx)}
		}
	}
	return nil
}

// LedgerConfigured reports whether live acquisition should be used.
func (c Config) LedgerConfigured() bool {
	return !c.Offline && strings.TrimSpace(c.RPCURL) != ""
}

// CometAddress returns the parsed market identifier.
func (c Config) CometAddress() (common.Address, error) {
	return ParseAddress("comet", c.Comet)
}

// ParseAddress converts a hex string into common.Address.
func ParseAddress(key, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, &ConfigError{Key: key, Reason: "address is required"}
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, &ConfigError{Key: key, Reason: fmt.Sprintf("invalid address %q", input)}
	}
	return common.HexToAddress(input), nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(val, 0).UTC(), nil
	}

	return time.Parse(time.RFC3339, input)
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

func getIntSlice(v *viper.Viper, key string) ([]int, error) {
	if !v.IsSet(key) {
		return nil, nil
	}

	var raw []string
	switch typed := v.Get(key).(type) {
	case []int:
		return typed, nil
	case []string:
		raw = typed
	case string:
		raw = strings.Split(typed, ",")
	case []interface{}:
		for _, item := range typed {
			raw = append(raw, fmt.Sprintf("%v", item))
		}
	default:
		return nil, &ConfigError{Key: key, Reason: fmt.Sprintf("unsupported type %T", typed)}
	}

	out := make([]int, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(strings.Trim(item, "[]"))
		if item == "" {
			continue
		}
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, &ConfigError{Key: key, Reason: fmt.Sprintf("invalid index %q", item)}
		}
		out = append(out, n)
	}
	return out, nil
}
