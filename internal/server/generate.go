// Package server provides the HTTP API for mirrorsync.
//
// The server is layered the same way as the CLI:
//
//   - Server: lifecycle of the event broker and streaming transports
//   - Config: listen address, auth, CORS, rate limits, cache TTL
//   - Router: chi routes and middleware chain
//   - Handlers: HTTP request handlers organized by concern
//
// Usage:
//
//	cfg := server.DefaultConfig()
//	cfg.Auth.Secret = os.Getenv("AUTH_JWT_SECRET")
//
//	srv, err := server.New(app, cfg)
//	if err != nil {
//	    return err
//	}
//
//	srv.Start()
//	http.ListenAndServe(":8080", srv.Handler())
package server

//go:generate gomarkdoc --output README.md .
