package transport

import (
	"net/http"
)

// Authenticator applies a credential to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request, credential string)
}

// NoAuth leaves requests untouched.
type NoAuth struct{}

// Apply implements Authenticator.
func (NoAuth) Apply(*http.Request, string) {}

// BearerAuth sends the credential as a bearer token.
type BearerAuth struct{}

// Apply implements Authenticator.
func (BearerAuth) Apply(req *http.Request, credential string) {
	req.Header.Set("Authorization", "Bearer "+credential)
}

// HeaderAuth sends the credential verbatim in Header.
type HeaderAuth struct {
	Header string
}

// Apply implements Authenticator.
func (a HeaderAuth) Apply(req *http.Request, credential string) {
	req.Header.Set(a.Header, credential)
}

// QueryAuth sends the credential as query parameter Param.
type QueryAuth struct {
	Param string
}

// Apply implements Authenticator.
func (a QueryAuth) Apply(req *http.Request, credential string) {
	if req.URL == nil {
		return
	}
	query := req.URL.Query()
	query.Set(a.Param, credential)
	req.URL.RawQuery = query.Encode()
}
