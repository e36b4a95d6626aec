package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. RUN_BUILD_LOG_LEVEL
const EnvPrefix = "RUN_BUILD"

// Config holds all configuration for run-build
type Config struct {
	Build   BuildConfig
	AWS     AWSConfig
	Log     LogConfig
	Output  OutputConfig
	Git     GitConfig
	Tracing TracingConfig
	Metrics MetricsConfig
}

// BuildConfig controls how builds are awaited
type BuildConfig struct {
	UpdateInterval time.Duration
	UpdateBackOff  time.Duration
	MaxBackOff     time.Duration
	BackOffJitter  float64
	MaxDrainPolls  int
	// Timeout bounds the whole run. Zero waits forever.
	Timeout time.Duration
}

// AWSConfig selects the AWS region and shared config profile
type AWSConfig struct {
	Region  string
	Profile string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// OutputConfig controls how the final build record is rendered
type OutputConfig struct {
	Format string
}

// GitConfig holds settings for publishing local work
type GitConfig struct {
	Remote string
	Token  string
}

// TracingConfig holds distributed tracing configuration
type TracingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	SampleRate     float64
	Insecure       bool
}

// MetricsConfig holds Prometheus Pushgateway settings
type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"output":     "output.format",
	"region":     "aws.region",
	"profile":    "aws.profile",
	"timeout":    "build.timeout",
	"remote":     "git.remote",
}

// Load reads configuration from defaults, an optional YAML file, environment
// variables and flags, in increasing order of precedence. When configFile is
// empty run-build.yaml is looked up in . and ./config.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("run-build")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars only
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("git.token", EnvPrefix+"_GIT_TOKEN", "GITHUB_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind git token: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	config := &Config{
		Build: BuildConfig{
			UpdateInterval: v.GetDuration("build.update_interval"),
			UpdateBackOff:  v.GetDuration("build.update_back_off"),
			MaxBackOff:     v.GetDuration("build.max_back_off"),
			BackOffJitter:  v.GetFloat64("build.back_off_jitter"),
			MaxDrainPolls:  v.GetInt("build.max_drain_polls"),
			Timeout:        v.GetDuration("build.timeout"),
		},
		AWS: AWSConfig{
			Region:  v.GetString("aws.region"),
			Profile: v.GetString("aws.profile"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Output: OutputConfig{
			Format: v.GetString("output.format"),
		},
		Git: GitConfig{
			Remote: v.GetString("git.remote"),
			Token:  v.GetString("git.token"),
		},
		Tracing: TracingConfig{
			Enabled:        v.GetBool("tracing.enabled"),
			ServiceName:    v.GetString("tracing.service_name"),
			ServiceVersion: v.GetString("tracing.service_version"),
			Environment:    v.GetString("tracing.environment"),
			OTLPEndpoint:   v.GetString("tracing.otlp_endpoint"),
			SampleRate:     v.GetFloat64("tracing.sample_rate"),
			Insecure:       v.GetBool("tracing.insecure"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: v.GetString("metrics.pushgateway_url"),
			Job:            v.GetString("metrics.job"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Build defaults
	v.SetDefault("build.update_interval", 30*time.Second)
	v.SetDefault("build.update_back_off", 15*time.Second)
	v.SetDefault("build.max_back_off", 10*time.Minute)
	v.SetDefault("build.back_off_jitter", 0.0)
	v.SetDefault("build.max_drain_polls", 0)
	v.SetDefault("build.timeout", time.Duration(0))

	// AWS defaults defer to the SDK's resolution chain
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.profile", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("output.format", "text")

	v.SetDefault("git.remote", "origin")
	v.SetDefault("git.token", "")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "run-build")
	v.SetDefault("tracing.service_version", "1.0.0")
	v.SetDefault("tracing.environment", "ci")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4318")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)

	// Metrics are only pushed when a gateway is configured
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "run_build")
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Build.UpdateInterval <= 0 {
		return fmt.Errorf("build.update_interval must be positive, got %s", c.Build.UpdateInterval)
	}
	if c.Build.UpdateBackOff <= 0 {
		return fmt.Errorf("build.update_back_off must be positive, got %s", c.Build.UpdateBackOff)
	}
	if c.Build.MaxBackOff < 0 {
		return fmt.Errorf("build.max_back_off must not be negative, got %s", c.Build.MaxBackOff)
	}
	if c.Build.BackOffJitter < 0 || c.Build.BackOffJitter >= 1 {
		return fmt.Errorf("build.back_off_jitter must be in [0, 1), got %v", c.Build.BackOffJitter)
	}
	if c.Build.MaxDrainPolls < 0 {
		return fmt.Errorf("build.max_drain_polls must not be negative, got %d", c.Build.MaxDrainPolls)
	}
	if c.Build.Timeout < 0 {
		return fmt.Errorf("build.timeout must not be negative, got %s", c.Build.Timeout)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q: expected console or json", c.Log.Format)
	}

	switch c.Output.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q: expected text, json or yaml", c.Output.Format)
	}
	return nil
}
