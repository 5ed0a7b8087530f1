package config

const (
	EnvPrefix = "LUXMINING"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "LUXMINING_DB_DSN"
	EnvDBHost = "LUXMINING_DB_HOST"
	EnvDBUser = "LUXMINING_DB_USER"
	EnvDBName = "LUXMINING_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
