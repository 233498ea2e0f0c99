package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/milestones/internal/paths"
	"github.com/mesh-intelligence/milestones/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend      = "backend"
	cfgKeyDataDir      = "data_dir"
	cfgKeySyncStrategy = "sync_strategy"
	cfgKeyWatermark    = "watermark_policy"

	envPrefix = "MILESTONES"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# milestones configuration

# Session store: sqlite (persists across runs) or memory (one process only)
backend: sqlite

# sync_strategy: immediate | on_close
sync_strategy: immediate

# watermark_policy: latest | highest
#   latest  - a lowered trip count lowers the watermark; regained badges celebrate again
#   highest - badges stay acknowledged once celebrated
watermark_policy: latest

# Data directory (optional; overridable by --data-dir flag)
# data_dir:
`

// loadConfig reads config.yaml from configDir with viper, creating the
// directory and a default file on first run. backend, sync_strategy and
// watermark_policy can be overridden by MILESTONES_* environment variables.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyWatermark, "latest")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	// data_dir is left out: its env override is resolved by paths.ResolveDataDir
	// with lower precedence than the file.
	for _, key := range []string{cfgKeyBackend, cfgKeySyncStrategy, cfgKeyWatermark} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("%w: read config: %v", types.ErrConfiguration, err)
	}
	return v, nil
}

// ensureDefaultConfigFile writes defaultConfigYAML unless config.yaml exists.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
