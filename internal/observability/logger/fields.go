package logger

import (
	"time"

	"go.uber.org/zap"
)

// Standard fields so log keys stay consistent across the codebase.

// RequestID crea un campo para el ID del request.
func RequestID(v string) zap.Field { return zap.String("request_id", v) }

// Method crea un campo para el método HTTP.
func Method(v string) zap.Field { return zap.String("method", v) }

// Path crea un campo para el path del request.
func Path(v string) zap.Field { return zap.String("path", v) }

// Status crea un campo para el status code HTTP.
func Status(v int) zap.Field { return zap.Int("status", v) }

// Duration crea un campo para la duración del request.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Provider names the identity provider involved in the operation.
func Provider(v string) zap.Field { return zap.String("provider", v) }

// SessionID names the caller session involved in the operation.
func SessionID(v string) zap.Field { return zap.String("session_id", v) }

// Driver names the token store driver in use.
func Driver(v string) zap.Field { return zap.String("driver", v) }

// Source marks where a served token came from (cache | refresh).
func Source(v string) zap.Field { return zap.String("source", v) }

// Op crea un campo para la operación actual.
func Op(v string) zap.Field { return zap.String("op", v) }

// Layer crea un campo para la capa (controller, service, store).
func Layer(v string) zap.Field { return zap.String("layer", v) }

// Err crea un campo para un error.
func Err(err error) zap.Field { return zap.Error(err) }

// String crea un campo string genérico.
func String(key, v string) zap.Field { return zap.String(key, v) }

// Int crea un campo int genérico.
func Int(key string, v int) zap.Field { return zap.Int(key, v) }
