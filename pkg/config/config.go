package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

const (
	PollWorkloadsKey   = "pollworkloads"
	AnalyzePatternsKey = "analyzepatterns"
)

type Config struct {
	RunMode      RunMode                `yaml:"runMode" mapstructure:"runMode"`
	Dependencies Dependencies           `yaml:"dependencies" mapstructure:"dependencies"`
	Monitor      MonitorConfig          `yaml:"monitor" mapstructure:"monitor"`
	Server       ServerConfig           `yaml:"server" mapstructure:"server"`
	DB           DatabaseConfig         `yaml:"db" mapstructure:"db"`
	Analysis     AnalysisConfig         `yaml:"analysis" mapstructure:"analysis"`
	Alerting     AlertingConfig         `yaml:"alerting" mapstructure:"alerting"`
	Telemetry    TelemetryConfig        `yaml:"telemetry" mapstructure:"telemetry"`
	Metrics      MetricsConfig          `yaml:"metrics" mapstructure:"metrics"`
	Custom       map[string]interface{} `yaml:",inline" mapstructure:",remain"`
}

func (c *Config) GetTaskConfig(taskName string) *TaskConfig {
	return c.Monitor.Tasks[taskName]
}

type Dependencies struct {
	KubeconfigPath string          `yaml:"kubeconfigPath" mapstructure:"kubeconfigPath"`
	Scheduler      SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
}

type SchedulerConfig struct {
	BaseURL      string `yaml:"baseURL" mapstructure:"baseURL"`
	ClientID     string `yaml:"clientID" mapstructure:"clientID"`
	ClientSecret string `yaml:"clientSecret" mapstructure:"clientSecret"`
}

type MonitorConfig struct {
	Project         string                 `yaml:"project,omitempty" mapstructure:"project"`
	AllowedProjects []string               `yaml:"allowedProjects" mapstructure:"allowedProjects"`
	EnrichFromPods  bool                   `yaml:"enrichFromPods" mapstructure:"enrichFromPods"`
	MaxAlertsPerJob int                    `yaml:"maxAlertsPerJob" mapstructure:"maxAlertsPerJob"`
	Tasks           map[string]*TaskConfig `yaml:"tasks" mapstructure:"tasks"`
}

type ServerConfig struct {
	Port string `yaml:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Type     string `yaml:"type" mapstructure:"type"`
	FilePath string `yaml:"filePath" mapstructure:"filePath"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

type AnalysisConfig struct {
	PatternThreshold  int `yaml:"patternThreshold" mapstructure:"patternThreshold"`
	DefaultWindowDays int `yaml:"defaultWindowDays" mapstructure:"defaultWindowDays"`
}

type AlertingConfig struct {
	SlackWebhookURL string `yaml:"slackWebhookURL" mapstructure:"slackWebhookURL"`
}

type TelemetryConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	ExporterOTLPEndpoint string  `yaml:"exporterOTLPEndpoint" mapstructure:"exporterOTLPEndpoint"`
	ExporterOTLPHeaders  string  `yaml:"exporterOTLPHeaders" mapstructure:"exporterOTLPHeaders"`
	ServiceName          string  `yaml:"serviceName" mapstructure:"serviceName"`
	TraceRatio           float64 `yaml:"traceRatio" mapstructure:"traceRatio"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    string `yaml:"port" mapstructure:"port"`
}

type RunMode string

const (
	RunModeLocal     RunMode = "local"
	RunModeInCluster RunMode = "inCluster"
)

// LoadConfig reads a bare YAML config file without viper's env and flag
// layering. Used by one-shot CLI invocations.
func LoadConfig(path string) (*Config, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
