// Package config loads and validates the benchmark configuration document.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all harness configuration.
type Config struct {
	Workload  WorkloadConfig  `mapstructure:"workload" validate:"required"`
	Model     ModelConfig     `mapstructure:"model"`
	Inference InferenceConfig `mapstructure:"inference"`
	Output    OutputConfig    `mapstructure:"output"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WorkloadConfig describes the synthetic workload to benchmark.
type WorkloadConfig struct {
	ContextLengths []int `mapstructure:"context_lengths" validate:"required,min=1,dive,gt=0"`
	NumSamples     int   `mapstructure:"num_samples" validate:"gt=0"`
	DecodeLength   int   `mapstructure:"decode_length" validate:"gt=0"`

	// Seed drives deterministic prompt synthesis; identical seeds produce
	// bit-identical prompt streams.
	Seed int64 `mapstructure:"seed"`

	// LengthTolerancePct is the accepted relative deviation between a
	// prompt's realized length and its nominal context length.
	LengthTolerancePct float64 `mapstructure:"length_tolerance_pct" validate:"gt=0,lte=1"`

	// SampleInterval spaces consecutive sample submissions; zero disables
	// pacing. SampleTimeout converts a hung engine call into a sample
	// failure.
	SampleInterval time.Duration `mapstructure:"sample_interval" validate:"gte=0"`
	SampleTimeout  time.Duration `mapstructure:"sample_timeout" validate:"gt=0"`
}

// ModelConfig identifies the model under test.
type ModelConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	DType       string `mapstructure:"dtype" validate:"oneof=fp16 bf16"`
	MaxModelLen int    `mapstructure:"max_model_len" validate:"gt=0"`
}

// InferenceConfig holds parameters for the external inference engine.
type InferenceConfig struct {
	Endpoint             string  `mapstructure:"endpoint" validate:"required,url"`
	GPUMemoryUtilization float64 `mapstructure:"gpu_memory_utilization" validate:"gt=0,lte=1"`
	TensorParallelSize   int     `mapstructure:"tensor_parallel_size" validate:"gt=0"`
	MaxNumSeqs           int     `mapstructure:"max_num_seqs" validate:"gt=0"`
	EnablePrefixCaching  bool    `mapstructure:"enable_prefix_caching"`
}

// OutputConfig holds result stream output settings.
type OutputConfig struct {
	ResultsDir string `mapstructure:"results_dir" validate:"required"`
	Filename   string `mapstructure:"filename" validate:"required"`
}

// DatabaseConfig holds the optional result database. An empty path disables
// SQLite persistence; the JSONL stream is always written.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig holds the optional Prometheus endpoint exposed during runs.
// An empty listen address disables it.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	LogDir  string `mapstructure:"log_dir"`
	Level   string `mapstructure:"level" validate:"oneof=DEBUG INFO WARNING ERROR"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Format  string `mapstructure:"format" validate:"oneof=json text"`
}

// Load reads configuration from the given file, applying defaults and
// environment overrides, and validates it. Unknown keys in the document are
// rejected so typos surface before any work begins.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvVars(v)

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Workload defaults mirror the stock baseline study.
	v.SetDefault("workload.context_lengths", []int{2048, 4096, 8192, 16384})
	v.SetDefault("workload.num_samples", 10)
	v.SetDefault("workload.decode_length", 128)
	v.SetDefault("workload.seed", 42)
	v.SetDefault("workload.length_tolerance_pct", 0.10)
	v.SetDefault("workload.sample_interval", time.Duration(0))
	v.SetDefault("workload.sample_timeout", 5*time.Minute)

	v.SetDefault("model.dtype", "fp16")
	v.SetDefault("model.max_model_len", 32768)

	v.SetDefault("inference.endpoint", "http://localhost:8000")
	v.SetDefault("inference.gpu_memory_utilization", 0.9)
	v.SetDefault("inference.tensor_parallel_size", 1)
	v.SetDefault("inference.max_num_seqs", 256)
	v.SetDefault("inference.enable_prefix_caching", false)

	v.SetDefault("output.results_dir", "results")
	v.SetDefault("output.filename", "baseline_results.jsonl")

	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.format", "text")
}

func bindEnvVars(v *viper.Viper) {
	// BindEnv errors are non-fatal but should be logged.
	bindEnv := func(key string, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			slog.Warn("failed to bind environment variable",
				slog.String("key", key),
				slog.String("env_var", envVar),
				slog.String("error", err.Error()))
		}
	}

	bindEnv("inference.endpoint", "RAGBENCH_ENDPOINT")
	bindEnv("model.name", "RAGBENCH_MODEL")
	bindEnv("database.path", "DATABASE_PATH")
	bindEnv("metrics.listen_addr", "METRICS_ADDR")
	bindEnv("logging.level", "LOG_LEVEL")
	bindEnv("logging.log_dir", "LOG_DIR")
}

// Validate checks configuration bounds. All violations are reported together
// rather than one at a time.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		msgs := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q constraint (value %v)",
				fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("invalid configuration: %w", err)
}
