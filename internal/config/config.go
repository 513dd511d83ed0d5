// Package config defines the application configuration and its loading
// from environment variables and optional config files.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"  validate:"required"`
}

// ServerConfig contains the HTTP trigger surface settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// LLMConfig contains the generation backend settings.
type LLMConfig struct {
	GeminiAPIKey      string        `mapstructure:"gemini_api_key" validate:"required"`
	ModelName         string        `mapstructure:"model_name"     validate:"required"`
	MaxRetries        int           `mapstructure:"max_retries"        validate:"gte=0,lte=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"gte=0,lte=60"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"    validate:"required"`
}

// WorkerConfig contains the task runner settings.
type WorkerConfig struct {
	Count               int           `mapstructure:"count"                 validate:"required,gt=0,lte=64"`
	QueueSize           int           `mapstructure:"queue_size"            validate:"required,gt=0"`
	StuckTaskAge        time.Duration `mapstructure:"stuck_task_age"        validate:"required"`
	StuckCheckInterval  time.Duration `mapstructure:"stuck_check_interval"  validate:"required"`
	QueueAllConcurrency int           `mapstructure:"queue_all_concurrency" validate:"required,gt=0,lte=64"`
}

// SandboxConfig contains the post-processing interpreter settings.
type SandboxConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" validate:"required"`
	PythonBinary   string        `mapstructure:"python_binary"   validate:"required"`
	NodeBinary     string        `mapstructure:"node_binary"     validate:"required"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes" validate:"required,gt=0"`
}
