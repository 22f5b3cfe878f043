package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadConfig reads the YAML config at path. A missing file is not an error;
// every setting has a default so the service can start unconfigured.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("storage.file_path", "data/clinic.db")
	v.SetDefault("storage.partitions", []string{"patients", "visits", "products", "sales"})
	v.SetDefault("remote.base_url", "http://localhost:4000/api")
	v.SetDefault("remote.health_path", "/health")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("sync.flush_interval", "30s")
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("connectivity.probe_interval", "10s")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
