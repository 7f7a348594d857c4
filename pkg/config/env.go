package config

// EnvPrefix is handed to envconfig; every field carries its full name in the struct tag.
const EnvPrefix = "BIKERENT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	PhonePeEnvUAT        = "uat"
	PhonePeEnvProduction = "production"
)

const (
	EnvAppEnv       = "BIKERENT_APP_ENV"
	EnvPort         = "BIKERENT_APP_PORT"
	EnvTimeZone     = "BIKERENT_TIME_ZONE"
	EnvDBDSN        = "BIKERENT_DB_DSN"
	EnvDBHost       = "BIKERENT_DB_HOST"
	EnvDBUser       = "BIKERENT_DB_USER"
	EnvDBName       = "BIKERENT_DB_NAME"
	EnvUseSQLite    = "BIKERENT_USE_SQLITE"
	EnvRedisURL     = "BIKERENT_REDIS_URL"
	EnvJWTSecret    = "BIKERENT_JWT_SECRET"
	EnvAdminHash    = "BIKERENT_ADMIN_PASSWORD_HASH"
	EnvPhonePeID    = "BIKERENT_PHONEPE_CLIENT_ID"
	EnvPhonePeKey   = "BIKERENT_PHONEPE_CLIENT_SECRET"
	EnvPhonePeUAT   = "BIKERENT_PHONEPE_IS_UAT"
	EnvCronSecret   = "BIKERENT_CRON_SECRET"
	EnvSMTPHost     = "BIKERENT_SMTP_HOST"
	EnvSMTPFrom     = "BIKERENT_SMTP_FROM"
	EnvCronInterval = "BIKERENT_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
