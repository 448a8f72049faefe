package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/crewbill/internal/invoice/format"
	"github.com/spf13/viper"
)

const (
	OvertimePolicyWholeRange = "whole_range"
	OvertimePolicyPerWeek    = "per_week"
)

// BuilderConfig tunes the bulk invoice builder.
type BuilderConfig struct {
	WeeklyOvertimeThreshold   float64       `mapstructure:"weeklyOvertimeThreshold"`
	DefaultOvertimeMultiplier float64       `mapstructure:"defaultOvertimeMultiplier"`
	OvertimePolicy            string        `mapstructure:"overtimePolicy"`
	DueDays                   int           `mapstructure:"dueDays"`
	InvoiceNumberTemplate     string        `mapstructure:"invoiceNumberTemplate"`
	SessionTTL                time.Duration `mapstructure:"sessionTTL"`
	LockTTL                   time.Duration `mapstructure:"lockTTL"`
}

func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		WeeklyOvertimeThreshold:   40,
		DefaultOvertimeMultiplier: 1.5,
		OvertimePolicy:            OvertimePolicyWholeRange,
		DueDays:                   30,
		InvoiceNumberTemplate:     "INV-{SEQ6}",
		SessionTTL:                2 * time.Hour,
		LockTTL:                   time.Minute,
	}
}

type BuilderConfigHolder struct {
	current atomic.Value // holds BuilderConfig
}

// NewStaticBuilderConfigHolder returns a holder that never reloads.
func NewStaticBuilderConfigHolder(cfg BuilderConfig) *BuilderConfigHolder {
	holder := &BuilderConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBuilderConfigHolder() (*BuilderConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("builder")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/crewbill/config")
	v.AddConfigPath("/etc/crewbill")
	v.AddConfigPath(".")

	return loadBuilderConfig(v, true)
}

func loadBuilderConfig(v *viper.Viper, watch bool) (*BuilderConfigHolder, error) {
	v.SetEnvPrefix("CREWBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBuilderConfig()
	v.SetDefault("builder.weeklyOvertimeThreshold", defaults.WeeklyOvertimeThreshold)
	v.SetDefault("builder.defaultOvertimeMultiplier", defaults.DefaultOvertimeMultiplier)
	v.SetDefault("builder.overtimePolicy", defaults.OvertimePolicy)
	v.SetDefault("builder.dueDays", defaults.DueDays)
	v.SetDefault("builder.invoiceNumberTemplate", defaults.InvoiceNumberTemplate)
	v.SetDefault("builder.sessionTTL", defaults.SessionTTL)
	v.SetDefault("builder.lockTTL", defaults.LockTTL)

	configFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		configFound = false
	}

	cfg, err := decodeBuilderConfig(v)
	if err != nil {
		return nil, err
	}
	if err := ValidateBuilderConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBuilderConfigHolder(cfg)
	if !watch || !configFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeBuilderConfig(v)
		if err != nil {
			log.Printf("[builder-config] reload failed: %v", err)
			return
		}
		if err := ValidateBuilderConfig(updated); err != nil {
			log.Printf("[builder-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[builder-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// decodeBuilderConfig goes through Unmarshal so CREWBILL_BUILDER_* variables
// override the file for every key with a default.
func decodeBuilderConfig(v *viper.Viper) (BuilderConfig, error) {
	var settings struct {
		Builder BuilderConfig `mapstructure:"builder"`
	}
	if err := v.Unmarshal(&settings); err != nil {
		return BuilderConfig{}, err
	}
	return settings.Builder, nil
}

func (h *BuilderConfigHolder) Get() BuilderConfig {
	return h.current.Load().(BuilderConfig)
}

func ValidateBuilderConfig(cfg BuilderConfig) error {
	if cfg.WeeklyOvertimeThreshold <= 0 {
		return errors.New("builder.weeklyOvertimeThreshold must be positive")
	}
	if cfg.DefaultOvertimeMultiplier < 1 {
		return errors.New("builder.defaultOvertimeMultiplier must be at least 1")
	}
	switch cfg.OvertimePolicy {
	case OvertimePolicyWholeRange, OvertimePolicyPerWeek:
	default:
		return errors.New("builder.overtimePolicy must be whole_range or per_week")
	}
	if cfg.DueDays < 0 {
		return errors.New("builder.dueDays cannot be negative")
	}
	if strings.TrimSpace(cfg.InvoiceNumberTemplate) == "" {
		return errors.New("builder.invoiceNumberTemplate is required")
	}
	if _, err := format.ParseNumberTemplate(cfg.InvoiceNumberTemplate); err != nil {
		return fmt.Errorf("builder.invoiceNumberTemplate: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return errors.New("builder.sessionTTL must be positive")
	}
	return nil
}
