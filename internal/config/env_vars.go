package config

import "strings"

type EnvConfig interface {
	GetAppName() string
	GetLogLevel() string
	GetEnv() string
}

type EnvVars struct {
	AppName  string `env:"APP_NAME" env-default:"Auth Session"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	Env      string `env:"ENV" env-default:"DEV"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.LogLevel)
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.Env)
}
