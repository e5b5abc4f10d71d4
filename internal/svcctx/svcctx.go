// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/formscan/formscan/internal/config"
	"github.com/formscan/formscan/internal/jobs"
	"github.com/formscan/formscan/internal/ocr"
)

// Services holds the core services that flow through request context.
// Endpoint handlers extract what they need via the individual extractors.
type Services struct {
	Engine      *ocr.Engine
	Pool        *jobs.Pool
	Ledger      jobs.Ledger
	ConfigStore *config.Manager
	Logger      *slog.Logger
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// EngineFrom extracts the extraction engine from context.
func EngineFrom(ctx context.Context) *ocr.Engine {
	if s := ServicesFrom(ctx); s != nil {
		return s.Engine
	}
	return nil
}

// PoolFrom extracts the worker pool from context.
func PoolFrom(ctx context.Context) *jobs.Pool {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pool
	}
	return nil
}

// LedgerFrom extracts the job ledger from context.
func LedgerFrom(ctx context.Context) jobs.Ledger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Ledger
	}
	return nil
}

// ConfigStoreFrom extracts the config manager from context.
func ConfigStoreFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigStore
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}
