package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"sync"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Config holds the forcing service settings, populated from environment
// variables. The env tag names the variable each field is read from.
type Config struct {
	KafkaBrokers     []string      `env:"KAFKA_BROKERS" validate:"min=1,dive,hostname_port"`
	KafkaSourceTopic string        `env:"KAFKA_SOURCE_TOPIC" validate:"required"`
	KafkaSinkTopic   string        `env:"KAFKA_SINK_TOPIC" validate:"required,nefield=KafkaSourceTopic"`
	KafkaGroupID     string        `env:"KAFKA_GROUP_ID" validate:"required"`
	HTTPAddr         string        `env:"HTTP_ADDR" validate:"required"`
	LogLevel         string        `env:"LOG_LEVEL"`
	LogFormat        string        `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT"`

	BatchSize          int           `env:"BATCH_SIZE"`
	BatchFlushInterval time.Duration `env:"BATCH_FLUSH_INTERVAL"`

	// ForcingConfigPath is the TOML parameter file describing products,
	// tools and directory roots.
	ForcingConfigPath string `env:"FORCING_CONFIG" validate:"required"`
	// Workers overrides exe.max_concurrent from the parameter file when positive.
	Workers int `env:"WORKERS"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "forcing-file-arrivals"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "forcing-file-outcomes"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "forcing-engine"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		ForcingConfigPath:  os.Getenv("FORCING_CONFIG"),
		Workers:            workers,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseWorkers() (int, error) {
	s := os.Getenv("WORKERS")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 256 {
		return 0, errors.New("invalid WORKERS: must be between 1 and 256")
	}
	return n, nil
}

var (
	validatorOnce sync.Once
	envValidator  *validator.Validate
)

// settingsValidator reports field errors by environment variable name.
func settingsValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if tag := fld.Tag.Get("env"); tag != "" {
				return tag
			}
			return fld.Name
		})
		envValidator = v
	})
	return envValidator
}

// validate checks cfg against its struct tags and joins one error per
// offending variable.
func validate(cfg *Config) error {
	err := settingsValidator().Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, describe(fe))
	}
	return errors.Join(errs...)
}

func describe(fe validator.FieldError) error {
	// Dive errors are named like KAFKA_BROKERS[0]; report the variable.
	name := fe.Field()
	if ns := fe.StructNamespace(); ns != "" {
		if f, ok := reflect.TypeOf(Config{}).FieldByName(structField(ns)); ok {
			name = f.Tag.Get("env")
		}
	}
	switch fe.Tag() {
	case "required", "min":
		return fmt.Errorf("%s is required", name)
	case "oneof":
		return fmt.Errorf("invalid %s %q: must be one of %s", name, fe.Value(), fe.Param())
	case "nefield":
		return fmt.Errorf("invalid %s: must differ from the source topic", name)
	case "hostname_port":
		return fmt.Errorf("invalid %s entry %q: want host:port", name, fe.Value())
	default:
		return fmt.Errorf("invalid %s: failed %s", name, fe.Tag())
	}
}

// structField extracts the top-level field name from a namespace such as
// "Config.KafkaBrokers[0]".
func structField(ns string) string {
	start := 0
	for i, r := range ns {
		switch r {
		case '.':
			start = i + 1
		case '[':
			return ns[start:i]
		}
	}
	return ns[start:]
}
