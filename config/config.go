package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/alice-sync/presence/coord"
	"github.com/alice-sync/presence/group"
	"github.com/alice-sync/presence/session"
)

const (
	defaultMaxDistance      = 50.0
	defaultHeightCoupling   = 0.1
	defaultDeltaClamp       = 1.0
	defaultBatchMixOrdering = "ascending"
	defaultExchangeDeadline = 5 * time.Second
	defaultReplayCacheSize  = 1024
)

// Config defines the configuration surface of the presence engine.
//
// See ReadConfigFile for the configuration loading process.
type Config struct {
	ConfigFile string `short:"c" long:"configfile" description:"Path to configuration file"`

	MaxDistance      float64       `long:"max-distance" description:"Admission bound for presence sessions, in coordinate-space units"`
	HeightCoupling   float64       `long:"height-coupling" description:"Coefficient of the Vivaldi height update term"`
	DeltaClamp       float64       `long:"delta-clamp" description:"Per-step cap on the coordinate update magnitude"`
	BatchMixOrdering string        `long:"batch-mix-ordering" choice:"ascending" choice:"insertion" description:"Ordering policy of the group batch digest"`
	ExchangeDeadline time.Duration `long:"exchange-deadline" description:"Wall-clock deadline between discovery and verification"`
	ReplayCacheSize  int           `long:"replay-cache-size" description:"Number of recently seen challenges remembered per peer set"`

	DebugLog    bool   `long:"debuglog" description:"Enable debug logs"`
	JSONLog     bool   `long:"jsonlog" description:"Whether to log in JSON format"`
	LogFileName string `long:"logfilename" description:"Log to this file in addition to the console"`
}

// DefaultConfig returns a config with default hardcoded values.
func DefaultConfig() *Config {
	return &Config{
		MaxDistance:      defaultMaxDistance,
		HeightCoupling:   defaultHeightCoupling,
		DeltaClamp:       defaultDeltaClamp,
		BatchMixOrdering: defaultBatchMixOrdering,
		ExchangeDeadline: defaultExchangeDeadline,
		ReplayCacheSize:  defaultReplayCacheSize,
	}
}

// ParseFlags reads values from command line arguments.
func ParseFlags(preCfg *Config) (*Config, error) {
	if _, err := flags.Parse(preCfg); err != nil {
		return nil, err
	}
	return preCfg, nil
}

// ReadConfigFile loads additional configuration options from the ini
// file named by the ConfigFile field, if any. A missing file is not an
// error; a malformed one is.
func ReadConfigFile(preCfg *Config) (*Config, error) {
	if preCfg.ConfigFile == "" {
		return preCfg, nil
	}
	path := cleanAndExpandPath(preCfg.ConfigFile)
	if err := flags.IniParse(path, preCfg); err != nil {
		var iniError *flags.IniError
		if errors.As(err, &iniError) {
			return nil, err
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return preCfg, nil
}

// SessionConfig projects the session admission tunables.
func (c *Config) SessionConfig() session.Config {
	return session.Config{MaxDistance: c.MaxDistance}
}

// UpdateConfig projects the coordinate update tunables.
func (c *Config) UpdateConfig() coord.UpdateConfig {
	return coord.UpdateConfig{
		HeightCoupling: c.HeightCoupling,
		DeltaClamp:     c.DeltaClamp,
	}
}

// Ordering resolves the configured batch mix ordering policy.
func (c *Config) Ordering() (group.Ordering, error) {
	return group.ParseOrdering(c.BatchMixOrdering)
}

// cleanAndExpandPath expands environment variables and a leading ~ in
// the passed path and cleans the result.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", home, 1)
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}
