package internal

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	stdio  bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithStdio runs the MCP server on stdin/stdout instead of the HTTP server.
func WithStdio(stdio bool) Option {
	return func(a *application) {
		a.stdio = stdio
	}
}
