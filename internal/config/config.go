package config

import (
	"time"

	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// Config is the full service configuration. Loaded once at startup; the
// contact policy is resolved here and never re-branched at call sites.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Tokens    TokenConfig     `mapstructure:"tokens"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Codes     CodeConfig      `mapstructure:"codes"`
	Security  SecurityConfig  `mapstructure:"security"`
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CookieDomain    string        `mapstructure:"cookie_domain"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	AuditTopic        string   `mapstructure:"audit_topic"`
	NotificationTopic string   `mapstructure:"notification_topic"`
}

// TokenConfig holds signing material and lifetimes for all token purposes.
type TokenConfig struct {
	Secret            string        `mapstructure:"secret"`
	Issuer            string        `mapstructure:"issuer"`
	AccessTTL         time.Duration `mapstructure:"access_ttl"`
	RefreshTTL        time.Duration `mapstructure:"refresh_ttl"`
	ServiceTTL        time.Duration `mapstructure:"service_ttl"`
	ServiceRotateWhen time.Duration `mapstructure:"service_rotate_when"` // remaining lifetime that triggers rotation
}

// PolicyConfig drives the login policy enforcer.
type PolicyConfig struct {
	UsersPerDevice   int            `mapstructure:"users_per_device"`
	DevicesPerUser   int            `mapstructure:"devices_per_user"`
	RoleDeviceCaps   map[string]int `mapstructure:"role_device_caps"` // per-role override of devices_per_user
	SoftReplace      bool           `mapstructure:"soft_replace"`
	AuthMode         string         `mapstructure:"auth_mode"` // email | phone | both | either
	MaxFailed2FA     int            `mapstructure:"max_failed_2fa"`
	ContactPolicyVal models.ContactPolicy
}

// DeviceCapForRole returns the devices-per-user cap for a role, falling back
// to the global cap.
func (p PolicyConfig) DeviceCapForRole(role string) int {
	if cap, ok := p.RoleDeviceCaps[role]; ok && cap > 0 {
		return cap
	}
	return p.DevicesPerUser
}

// CodeConfig configures the one-time-code subsystem.
type CodeConfig struct {
	OTPLength   int           `mapstructure:"otp_length"`
	OTPTTL      time.Duration `mapstructure:"otp_ttl"`
	LinkTTL     time.Duration `mapstructure:"link_ttl"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	LinkSecret  string        `mapstructure:"link_secret"` // HMAC key for link tokens
}

type PasswordHashConfig struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type SecurityConfig struct {
	PasswordHash PasswordHashConfig `mapstructure:"password_hash"`
	CacheSalt    string             `mapstructure:"cache_salt"` // server salt for cache key derivation
	TOTPIssuer   string             `mapstructure:"totp_issuer"`
}

// ClusterConfig gates multi-instance behavior: the distributed cache, the
// internal endpoints and the service token rotator.
type ClusterConfig struct {
	MultiInstance bool          `mapstructure:"multi_instance"`
	ServiceName   string        `mapstructure:"service_name"`
	InstanceID    string        `mapstructure:"instance_id"`
	Siblings      []string      `mapstructure:"siblings"` // base URLs of sibling instances
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}
