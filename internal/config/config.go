package config

import (
	"time"
)

type Config struct {
	Storage      StorageConfig      `mapstructure:"storage"`
	Remote       RemoteConfig       `mapstructure:"remote"`
	Sync         SyncConfig         `mapstructure:"sync"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type StorageConfig struct {
	FilePath   string   `mapstructure:"file_path"`
	Partitions []string `mapstructure:"partitions"`
}

type RemoteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	AuthToken  string `mapstructure:"auth_token"`
	HealthPath string `mapstructure:"health_path"`
	Timeout    string `mapstructure:"timeout"`
}

func (r RemoteConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(r.Timeout)
	return d
}

type SyncConfig struct {
	FlushInterval string `mapstructure:"flush_interval"`
	MaxRetries    int    `mapstructure:"max_retries"`
}

func (s SyncConfig) GetFlushInterval() time.Duration {
	d, _ := time.ParseDuration(s.FlushInterval)
	return d
}

type ConnectivityConfig struct {
	ProbeInterval string `mapstructure:"probe_interval"`
}

func (c ConnectivityConfig) GetProbeInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProbeInterval)
	return d
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	AuthToken    string   `mapstructure:"auth_token"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CorsOrigins  []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
