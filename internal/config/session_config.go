package config

import "time"

// OneWeek is the fixed lifetime of a session credential
const OneWeek = 7 * 24 * time.Hour

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetSecureCookies() bool
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionTTL() time.Duration {
	return GetEnvDuration("SESSION_TTL", OneWeek)
}

// GetSecureCookies is true only in production-equivalent environments
func (Session) GetSecureCookies() bool {
	return EnvVars{}.IsProduction()
}
