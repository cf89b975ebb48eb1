package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/omnibill/omnibill/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Billing    BillingConfig    `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

// BillingConfig carries company-wide billing defaults. Per-company overrides
// are supplied through types.BillingContext at call time.
type BillingConfig struct {
	// DefaultTimezone is the IANA timezone used when a company has none set
	DefaultTimezone string
	// DefaultProRataDay anchors recurring cycles when a package group has no
	// explicit pro rata day (0 disables proration)
	DefaultProRataDay int `validate:"gte=0,lte=28"`
	// DefaultCutoffDay controls stub period billing for services created late
	// in the month (0 disables the cutoff rule)
	DefaultCutoffDay int `validate:"gte=0,lte=31"`
	// InvoiceDueDays is the default number of days between billed and due dates
	InvoiceDueDays int `validate:"gte=0"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/omnibill")

	v.SetEnvPrefix("OMNIBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// and for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			DefaultTimezone: "UTC",
			InvoiceDueDays:  0,
		},
	}
}
