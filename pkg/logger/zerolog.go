package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// ZerologHandler adapts a zerolog.Logger to the Logger interface.
type ZerologHandler struct {
	logger zerolog.Logger
}

var _ Logger = (*ZerologHandler)(nil)

// NewZerolog wraps an existing zerolog.Logger.
func NewZerolog(l zerolog.Logger) *ZerologHandler {
	return &ZerologHandler{logger: l}
}

// NewZerologWriter builds a timestamped zerolog.Logger on the given writer.
func NewZerologWriter(w io.Writer) *ZerologHandler {
	return &ZerologHandler{logger: zerolog.New(w).With().Timestamp().Logger()}
}

func (handler *ZerologHandler) Error(msg string, args ...any) {
	handler.emit(handler.logger.Error(), msg, args)
}

func (handler *ZerologHandler) Warn(msg string, args ...any) {
	handler.emit(handler.logger.Warn(), msg, args)
}

func (handler *ZerologHandler) Info(msg string, args ...any) {
	handler.emit(handler.logger.Info(), msg, args)
}

func (handler *ZerologHandler) Debug(msg string, args ...any) {
	handler.emit(handler.logger.Debug(), msg, args)
}

// emit folds alternating key/value args into zerolog fields. A trailing key
// without a value is logged under the "arg" field rather than dropped.
func (handler *ZerologHandler) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			ev = ev.Interface("arg", args[i]).Interface("value", args[i+1])
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		ev = ev.Interface("arg", args[len(args)-1])
	}
	ev.Msg(msg)
}
