package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadWithViper loads configuration using Viper from a single config file.
// Overridden by env vars (prefix CLUSTEREYE_) and flags bound by caller.
func LoadWithViper(ctx context.Context, configFilePath string) (*Config, error) {
	return LoadWithViperInstance(ctx, viper.New(), configFilePath)
}

// LoadWithViperInstance loads configuration using a provided Viper instance (for flag binding).
func LoadWithViperInstance(ctx context.Context, v *viper.Viper, configFilePath string) (*Config, error) {

	v.SetDefault("runMode", string(RunModeInCluster))
	v.SetDefault("dependencies.kubeconfigPath", "")
	v.SetDefault("monitor.allowedProjects", []string{"*"})
	v.SetDefault("monitor.enrichFromPods", true)
	v.SetDefault("monitor.maxAlertsPerJob", 1)
	v.SetDefault("monitor.tasks.pollworkloads.enabled", true)
	v.SetDefault("monitor.tasks.pollworkloads.schedule", "60s")
	v.SetDefault("monitor.tasks.analyzepatterns.enabled", false)
	v.SetDefault("monitor.tasks.analyzepatterns.schedule", "1h")
	v.SetDefault("analysis.patternThreshold", 3)
	v.SetDefault("analysis.defaultWindowDays", 7)
	v.SetDefault("server.port", "8080")
	v.SetDefault("db.type", "sqlite")
	v.SetDefault("db.filePath", "clustereye.db")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", "9090")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.serviceName", "clustereye")
	v.SetDefault("telemetry.traceRatio", 0.1)

	v.SetConfigType("yaml")
	if configFilePath != "" {
		v.SetConfigFile(configFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFilePath, err)
		}
	}

	v.SetEnvPrefix("CLUSTEREYE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Dependencies.Scheduler.BaseURL == "" {
		return fmt.Errorf("dependencies.scheduler.baseURL is required")
	}
	if (c.Dependencies.Scheduler.ClientID == "") != (c.Dependencies.Scheduler.ClientSecret == "") {
		return fmt.Errorf("dependencies.scheduler.clientID and clientSecret must be set together")
	}

	switch c.RunMode {
	case RunModeLocal, RunModeInCluster:
	default:
		return fmt.Errorf("invalid run-mode: %s (expected local|inCluster)", c.RunMode)
	}

	switch c.DB.Type {
	case "", "sqlite":
		if c.DB.FilePath == "" {
			return fmt.Errorf("db.filePath is required for sqlite")
		}
	case "postgres":
		if c.DB.Host == "" || c.DB.Database == "" {
			return fmt.Errorf("db.host and db.database are required for postgres")
		}
	default:
		return fmt.Errorf("invalid db.type: %s (expected sqlite|postgres)", c.DB.Type)
	}

	return nil
}
