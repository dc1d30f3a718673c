package config

// EnvPrefix is applied by envconfig on top of the explicit envconfig tags.
const EnvPrefix = "partnerhub"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv  = "PARTNERHUB_APP_ENV"
	EnvAppPort = "PARTNERHUB_APP_PORT"

	EnvDBDSN  = "PARTNERHUB_DB_DSN"
	EnvDBHost = "PARTNERHUB_DB_HOST"
	EnvDBUser = "PARTNERHUB_DB_USER"
	EnvDBName = "PARTNERHUB_DB_NAME"

	EnvRedisURL = "PARTNERHUB_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
