package config

// EnvPrefix scopes every environment variable this service reads.
const EnvPrefix = "routebill"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "ROUTEBILL_APP_ENV"
	EnvPort       = "ROUTEBILL_APP_PORT"
	EnvDBDSN      = "ROUTEBILL_DB_DSN"
	EnvDBHost     = "ROUTEBILL_DB_HOST"
	EnvDBUser     = "ROUTEBILL_DB_USER"
	EnvDBName     = "ROUTEBILL_DB_NAME"
	EnvRedisURL   = "ROUTEBILL_REDIS_URL"
	EnvJWTSecret  = "ROUTEBILL_JWT_SECRET"
	EnvJWTIssuer  = "ROUTEBILL_JWT_ISSUER"
	EnvJWTExpMins = "ROUTEBILL_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
