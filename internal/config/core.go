package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CoreConfig carries the tunables of the assignment, feature flag and audit components.
type CoreConfig struct {
	Assignment   AssignmentConfig  `mapstructure:"assignment"`
	FeatureFlags FeatureFlagConfig `mapstructure:"featureFlags"`
	Audit        AuditConfig       `mapstructure:"audit"`
}

type AssignmentConfig struct {
	DefaultCapacity int           `mapstructure:"defaultCapacity"`
	LockTTL         time.Duration `mapstructure:"lockTTL"`
}

type FeatureFlagConfig struct {
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

type AuditConfig struct {
	QueueSize int `mapstructure:"queueSize"`
}

func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		Assignment: AssignmentConfig{
			DefaultCapacity: 10,
			LockTTL:         5 * time.Second,
		},
		FeatureFlags: FeatureFlagConfig{
			CacheTTL: 30 * time.Second,
		},
		Audit: AuditConfig{
			QueueSize: 1024,
		},
	}
}

type CoreConfigHolder struct {
	current atomic.Value // holds CoreConfig
}

// NewStaticCoreConfigHolder returns a holder pinned to cfg, without file watching.
func NewStaticCoreConfigHolder(cfg CoreConfig) *CoreConfigHolder {
	holder := &CoreConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCoreConfigHolder(log *zap.Logger) (*CoreConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.core")

	v := viper.New()

	v.SetConfigName("core")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/buildledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BUILDLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCoreConfig()
	v.SetDefault("assignment.defaultCapacity", defaults.Assignment.DefaultCapacity)
	v.SetDefault("assignment.lockTTL", defaults.Assignment.LockTTL)
	v.SetDefault("featureFlags.cacheTTL", defaults.FeatureFlags.CacheTTL)
	v.SetDefault("audit.queueSize", defaults.Audit.QueueSize)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg CoreConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := validateCoreConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticCoreConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CoreConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("core config reload failed", zap.Error(err))
			return
		}
		if err := validateCoreConfig(updated); err != nil {
			log.Warn("invalid core config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("core config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CoreConfigHolder) Get() CoreConfig {
	if h == nil {
		return DefaultCoreConfig()
	}
	cfg, ok := h.current.Load().(CoreConfig)
	if !ok {
		return DefaultCoreConfig()
	}
	return cfg
}

func validateCoreConfig(cfg CoreConfig) error {
	if cfg.Assignment.DefaultCapacity <= 0 {
		return errors.New("assignment.defaultCapacity must be positive")
	}
	if cfg.Assignment.LockTTL <= 0 {
		return errors.New("assignment.lockTTL must be positive")
	}
	if cfg.FeatureFlags.CacheTTL <= 0 {
		return errors.New("featureFlags.cacheTTL must be positive")
	}
	if cfg.Audit.QueueSize <= 0 {
		return errors.New("audit.queueSize must be positive")
	}
	return nil
}
