package main

import (
	"runtime"

	"github.com/xyproto/env/v2"
)

// config holds the CLI defaults. Flags override these values.
type config struct {
	LogLevel string
	Format   string
	GOOS     string
	GOARCH   string
	Verify   bool
}

func configFromEnv() config {
	return config{
		LogLevel: env.Str("X86SHUF_LOG_LEVEL", "info"),
		Format:   env.Str("X86SHUF_FORMAT", "text"),
		GOOS:     env.Str("X86SHUF_GOOS", runtime.GOOS),
		GOARCH:   env.Str("X86SHUF_GOARCH", "amd64"),
		Verify:   env.Bool("X86SHUF_VERIFY"),
	}
}
