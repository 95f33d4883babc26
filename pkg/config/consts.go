package config

const (
	EnvPrefix = "shopzone"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "SHOPZONE_APP_ENV"
	EnvPort       = "SHOPZONE_APP_PORT"
	EnvRedisURL   = "SHOPZONE_REDIS_URL"
	EnvJWTSecret  = "SHOPZONE_JWT_SECRET"
	EnvJWTIssuer  = "SHOPZONE_JWT_ISSUER"
	EnvJWTExpMins = "SHOPZONE_JWT_EXPIRATION_MINUTES"

	EnvDBDSN  = "SHOPZONE_DB_DSN"
	EnvDBHost = "SHOPZONE_DB_HOST"
	EnvDBUser = "SHOPZONE_DB_USER"
	EnvDBName = "SHOPZONE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
