package transport

import (
	"net/http"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request)
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request) {
	// No authentication applied
}

// TokenAuth implements BookStack API token authentication.
type TokenAuth struct {
	ID     string
	Secret string
}

// Apply implements the Authenticator interface for TokenAuth.
func (a *TokenAuth) Apply(req *http.Request) {
	if a.ID == "" && a.Secret == "" {
		return
	}
	req.Header.Set("Authorization", "Token "+a.ID+":"+a.Secret)
}

// authenticatorFor picks token auth when credentials are configured.
func authenticatorFor(cfg Config) Authenticator {
	if cfg.TokenID == "" && cfg.TokenSecret == "" {
		return &NoAuth{}
	}
	return &TokenAuth{ID: cfg.TokenID, Secret: cfg.TokenSecret}
}
