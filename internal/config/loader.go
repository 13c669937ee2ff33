package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// LoadConfig reads configuration from file and environment variables.
// Resolution order: defaults, then config.<env>.yaml, then AUTH_* env vars.
func LoadConfig() (*Config, error) {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	setDefaults()

	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/auth-service")
	}

	viper.SetEnvPrefix("AUTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file means env-only configuration.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Policy.ContactPolicyVal = models.ParseContactPolicy(cfg.Policy.AuthMode)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Tokens.Secret == "" {
		return errors.New("tokens.secret is required")
	}
	if cfg.Tokens.AccessTTL <= 0 || cfg.Tokens.RefreshTTL <= 0 {
		return errors.New("tokens.access_ttl and tokens.refresh_ttl must be positive")
	}
	if cfg.Tokens.AccessTTL >= cfg.Tokens.RefreshTTL {
		return errors.New("tokens.access_ttl must be shorter than tokens.refresh_ttl")
	}
	if cfg.Cluster.MultiInstance && cfg.Cluster.InstanceID == "" {
		return errors.New("cluster.instance_id is required in multi-instance mode")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "15s")
	viper.SetDefault("server.cookie_secure", true)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("tokens.issuer", "auth-service")
	viper.SetDefault("tokens.access_ttl", "15m")
	viper.SetDefault("tokens.refresh_ttl", "720h")
	viper.SetDefault("tokens.service_ttl", "1h")
	viper.SetDefault("tokens.service_rotate_when", "10m")

	viper.SetDefault("policy.users_per_device", 3)
	viper.SetDefault("policy.devices_per_user", 3)
	viper.SetDefault("policy.soft_replace", false)
	viper.SetDefault("policy.auth_mode", "either")
	viper.SetDefault("policy.max_failed_2fa", 5)

	viper.SetDefault("codes.otp_length", 6)
	viper.SetDefault("codes.otp_ttl", "10m")
	viper.SetDefault("codes.link_ttl", "24h")
	viper.SetDefault("codes.max_attempts", 5)

	viper.SetDefault("security.password_hash.memory", 65536)
	viper.SetDefault("security.password_hash.iterations", 3)
	viper.SetDefault("security.password_hash.parallelism", 2)
	viper.SetDefault("security.password_hash.salt_length", 16)
	viper.SetDefault("security.password_hash.key_length", 32)
	viper.SetDefault("security.totp_issuer", "Arcadia")

	viper.SetDefault("cluster.multi_instance", false)
	viper.SetDefault("cluster.service_name", "auth-service")
	viper.SetDefault("cluster.retry_attempts", 3)
	viper.SetDefault("cluster.retry_delay", "200ms")
	viper.SetDefault("cluster.call_timeout", "2s")

	viper.SetDefault("telemetry.metrics_enabled", true)
}
