package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables use the PIPELINE_ prefix with
// underscores for nesting (e.g. PIPELINE_DATABASE_URL) and take
// precedence over file values. Returns a validated Config or an error
// describing the first invalid field.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/pipeline")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, the environment can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers the default value for every config key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Keys without a usable default still need registering so that
	// AutomaticEnv feeds them through Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("llm.gemini_api_key", "")

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.request_timeout", 2*time.Minute)

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.queue_size", 100)
	v.SetDefault("worker.stuck_task_age", 30*time.Minute)
	v.SetDefault("worker.stuck_check_interval", 5*time.Minute)
	v.SetDefault("worker.queue_all_concurrency", 4)

	v.SetDefault("sandbox.timeout", 30*time.Second)
	v.SetDefault("sandbox.python_binary", "python3")
	v.SetDefault("sandbox.node_binary", "node")
	v.SetDefault("sandbox.max_output_bytes", 1<<20)
}

// validate runs struct validation and converts the first failure into a
// readable error naming the offending field.
func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		return fmt.Errorf(
			"invalid configuration: field %s failed %q validation",
			first.Namespace(),
			first.Tag(),
		)
	}

	return fmt.Errorf("invalid configuration: %w", err)
}
