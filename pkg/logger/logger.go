// Package logger defines the leveled logging interface consumed by the rest
// of the module, plus adapters for log/slog and zerolog.
package logger

import (
	"log/slog"
	"os"
)

// Logger accepts a message and alternating key/value pairs, in the style of
// log/slog. Every component of this module takes an injected Logger so that
// the consuming application controls log routing and verbosity.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// SlogHandler adapts a slog.Handler to the Logger interface.
type SlogHandler struct {
	logger *slog.Logger
}

var _ Logger = (*SlogHandler)(nil)

func New(h slog.Handler) *SlogHandler {
	return &SlogHandler{logger: slog.New(h)}
}

// Default returns a Logger writing text to stdout. It is used by components
// whose configuration did not provide a Logger.
func Default() Logger {
	return New(slog.NewTextHandler(os.Stdout, nil))
}

func (handler *SlogHandler) Error(msg string, args ...any) {
	handler.logger.Error(msg, args...)
}

func (handler *SlogHandler) Warn(msg string, args ...any) {
	handler.logger.Warn(msg, args...)
}

func (handler *SlogHandler) Info(msg string, args ...any) {
	handler.logger.Info(msg, args...)
}

func (handler *SlogHandler) Debug(msg string, args ...any) {
	handler.logger.Debug(msg, args...)
}
