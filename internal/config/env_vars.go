package config

import (
	"fmt"
	"net"
	"strings"
)

type EnvVars struct {
	Host     string `env:"HOST"      envDefault:"127.0.0.1"`
	Port     string `env:"PORT"      envDefault:"8080"`
	AppName  string `env:"APP_NAME"  envDefault:"Prompting Recipe"`
	Env      string `env:"ENV"       envDefault:"DEV"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	return e.Port
}

// GetListenAddr is the host and port the local server binds, loopback unless
// HOST says otherwise.
func (e EnvVars) GetListenAddr() string {
	return net.JoinHostPort(e.Host, strings.TrimPrefix(e.Port, ":"))
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) IsDev() bool {
	return e.Env == "DEV"
}

func (e *EnvVars) sanitize() {
	if e.Port != "" && e.Port[0] != ':' {
		e.Port = fmt.Sprintf(":%s", e.Port)
	}
	e.Host = strings.TrimSpace(e.Host)
	e.Env = strings.ToUpper(strings.TrimSpace(e.Env))
	if e.Env == "" {
		e.Env = "DEV"
	}
	e.LogLevel = strings.ToLower(strings.TrimSpace(e.LogLevel))
}
