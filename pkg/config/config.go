package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Admin        AdminConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	PhonePe      PhonePeConfig
	Cron         CronConfig
	SMTP         SMTPConfig
	RateLimit    AuthRateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadPassword reads only the argon2id parameters, for offline tooling that
// has no database or processor credentials.
func LoadPassword() (PasswordConfig, error) {
	var cfg PasswordConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return PasswordConfig{}, fmt.Errorf("parsing password config: %w", err)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BIKERENT_APP_ENV" required:"true"`
	Port         string `envconfig:"BIKERENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BIKERENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BIKERENT_LOG_WARN_STACK" default:"false"`
	// TimeZone drives the Monday gate and the 09:00 next-debit slot.
	TimeZone string `envconfig:"BIKERENT_TIME_ZONE" default:"Asia/Kolkata"`
	// CORSOrigins is a comma separated allow-list for the dashboard front-end.
	CORSOrigins []string `envconfig:"BIKERENT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// Location resolves the configured business time zone.
func (a AppConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(a.TimeZone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

type ServiceConfig struct {
	Kind string `envconfig:"BIKERENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BIKERENT_DB_DSN"`
	Driver string `envconfig:"BIKERENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BIKERENT_DB_HOST"`
	LegacyPort     int    `envconfig:"BIKERENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BIKERENT_DB_USER"`
	LegacyPassword string `envconfig:"BIKERENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"BIKERENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"BIKERENT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"BIKERENT_SQLITE_PATH" default:"bikerent.db"`

	MaxOpenConns    int           `envconfig:"BIKERENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIKERENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIKERENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIKERENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BIKERENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BIKERENT_REDIS_ADDR"`
	Password     string        `envconfig:"BIKERENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIKERENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIKERENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIKERENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIKERENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIKERENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BIKERENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BIKERENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BIKERENT_JWT_ISSUER" default:"bikerent"`
	ExpirationMinutes int    `envconfig:"BIKERENT_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// AdminConfig holds the single back-office operator. PasswordHash is an argon2id string.
type AdminConfig struct {
	Username     string `envconfig:"BIKERENT_ADMIN_USERNAME" default:"admin"`
	PasswordHash string `envconfig:"BIKERENT_ADMIN_PASSWORD_HASH" required:"true"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BIKERENT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BIKERENT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BIKERENT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BIKERENT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BIKERENT_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BIKERENT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BIKERENT_AUTO_MIGRATE" default:"false"`
	// SendMandateEmail mails the authorization link after a mandate is created.
	SendMandateEmail bool `envconfig:"BIKERENT_FEATURE_MANDATE_EMAIL" default:"false"`
}

type EventingConfig struct {
	WebhookDedupeTTL time.Duration `envconfig:"BIKERENT_WEBHOOK_DEDUPE_TTL" default:"72h"`
}

type PhonePeConfig struct {
	ClientID      string        `envconfig:"BIKERENT_PHONEPE_CLIENT_ID" required:"true"`
	ClientSecret  string        `envconfig:"BIKERENT_PHONEPE_CLIENT_SECRET" required:"true"`
	ClientVersion string        `envconfig:"BIKERENT_PHONEPE_CLIENT_VERSION" default:"1"`
	IsUAT         bool          `envconfig:"BIKERENT_PHONEPE_IS_UAT" default:"false"`
	CallbackURL   string        `envconfig:"BIKERENT_CALLBACK_URL"`
	Timeout       time.Duration `envconfig:"BIKERENT_PHONEPE_TIMEOUT" default:"30s"`
	TokenSkew     time.Duration `envconfig:"BIKERENT_PHONEPE_TOKEN_SKEW" default:"60s"`
	// BaseURL and AuthURL override the environment defaults (tests, proxies).
	BaseURL string `envconfig:"BIKERENT_PHONEPE_BASE_URL"`
	AuthURL string `envconfig:"BIKERENT_PHONEPE_AUTH_URL"`

	WebhookUsername string `envconfig:"BIKERENT_PHONEPE_WEBHOOK_USERNAME"`
	WebhookPassword string `envconfig:"BIKERENT_PHONEPE_WEBHOOK_PASSWORD"`
}

// Environment returns the normalized PhonePe environment name.
func (p PhonePeConfig) Environment() string {
	if p.IsUAT {
		return PhonePeEnvUAT
	}
	return PhonePeEnvProduction
}

type CronConfig struct {
	Secret   string        `envconfig:"BIKERENT_CRON_SECRET"`
	Interval time.Duration `envconfig:"BIKERENT_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"BIKERENT_CRON_LOCK_TTL" default:"30m"`
}

// AuthRateLimitConfig throttles the login endpoint per client IP and per username.
type AuthRateLimitConfig struct {
	LoginWindow    time.Duration `envconfig:"BIKERENT_LOGIN_RATE_WINDOW" default:"15m"`
	LoginIPLimit   int           `envconfig:"BIKERENT_LOGIN_RATE_IP_LIMIT" default:"20"`
	LoginUserLimit int           `envconfig:"BIKERENT_LOGIN_RATE_USER_LIMIT" default:"10"`
}

type SMTPConfig struct {
	Host     string `envconfig:"BIKERENT_SMTP_HOST"`
	Port     int    `envconfig:"BIKERENT_SMTP_PORT" default:"587"`
	Username string `envconfig:"BIKERENT_SMTP_USERNAME"`
	Password string `envconfig:"BIKERENT_SMTP_PASSWORD"`
	From     string `envconfig:"BIKERENT_SMTP_FROM"`
}

// Enabled reports whether enough SMTP settings exist to send mail.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != "" && strings.TrimSpace(s.From) != ""
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
	}
	if db.IsSQLite() {
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
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
