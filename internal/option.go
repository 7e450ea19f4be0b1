package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	version   string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the structured log stream (stdout by default).
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}
