package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Billing       BillingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ROUTEBILL_APP_ENV" required:"true"`
	Port         string `envconfig:"ROUTEBILL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ROUTEBILL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ROUTEBILL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ROUTEBILL_DB_DSN"`
	Driver string `envconfig:"ROUTEBILL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ROUTEBILL_DB_HOST"`
	LegacyPort     int    `envconfig:"ROUTEBILL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ROUTEBILL_DB_USER"`
	LegacyPassword string `envconfig:"ROUTEBILL_DB_PASSWORD"`
	LegacyName     string `envconfig:"ROUTEBILL_DB_NAME"`
	LegacySSLMode  string `envconfig:"ROUTEBILL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ROUTEBILL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ROUTEBILL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ROUTEBILL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ROUTEBILL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ROUTEBILL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ROUTEBILL_REDIS_ADDR"`
	Password     string        `envconfig:"ROUTEBILL_REDIS_PASSWORD"`
	DB           int           `envconfig:"ROUTEBILL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ROUTEBILL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ROUTEBILL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ROUTEBILL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ROUTEBILL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ROUTEBILL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"ROUTEBILL_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"ROUTEBILL_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"ROUTEBILL_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"ROUTEBILL_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ROUTEBILL_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ROUTEBILL_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ROUTEBILL_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ROUTEBILL_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ROUTEBILL_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"ROUTEBILL_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"ROUTEBILL_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"ROUTEBILL_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite    bool   `envconfig:"ROUTEBILL_USE_SQLITE" default:"false"`
	AutoMigrate  bool   `envconfig:"ROUTEBILL_AUTO_MIGRATE" default:"false"`
	SeedDemo     bool   `envconfig:"ROUTEBILL_SEED_DEMO" default:"false"`
	DemoPassword string `envconfig:"ROUTEBILL_DEMO_PASSWORD" default:"changeme"`
}

// BillingConfig supplies the fallback billing values used before the
// settings row exists.
type BillingConfig struct {
	DefaultTaxRate       string `envconfig:"ROUTEBILL_BILLING_DEFAULT_TAX_RATE" default:"18"`
	DefaultTaxEnabled    bool   `envconfig:"ROUTEBILL_BILLING_DEFAULT_TAX_ENABLED" default:"true"`
	InvoiceNumberPrefix  string `envconfig:"ROUTEBILL_BILLING_INVOICE_PREFIX" default:"INV"`
	OrderNumberPrefix    string `envconfig:"ROUTEBILL_BILLING_ORDER_PREFIX" default:"ORD"`
	CustomerCodePrefix   string `envconfig:"ROUTEBILL_BILLING_CUSTOMER_PREFIX" default:"CUST"`
	ProductCodePrefix    string `envconfig:"ROUTEBILL_BILLING_PRODUCT_PREFIX" default:"PROD"`
	RouteCodePrefix      string `envconfig:"ROUTEBILL_BILLING_ROUTE_PREFIX" default:"RT"`
	SequencePaddingWidth int    `envconfig:"ROUTEBILL_BILLING_SEQUENCE_PADDING" default:"5"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
