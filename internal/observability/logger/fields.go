package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTP

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field { return zap.String("method", v) }
func Path(v string) zap.Field { return zap.String("path", v) }
func Status(v int) zap.Field { return zap.Int("status", v) }
func Bytes(v int) zap.Field { return zap.Int("bytes", v) }
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }
func Layer(v string) zap.Field { return zap.String("layer", v) }
func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field { return zap.String("op", v) }
func Err(err error) zap.Field { return zap.Error(err) }
func String(k, v string) zap.Field { return zap.String(k, v) }
func Int(k string, v int) zap.Field { return zap.Int(k, v) }
func Any(k string, v any) zap.Field { return zap.Any(k, v) }
func Time(k string, v time.Time) zap.Field { return zap.Time(k, v) }

// Dominio

func UserID(v string) zap.Field { return zap.String("user_id", v) }
func Provider(v string) zap.Field { return zap.String("provider", v) }
func Stage(v string) zap.Field { return zap.String("stage", v) }

// Email enmascara el email: primeros 2 caracteres + @dominio.
func Email(v string) zap.Field { return zap.String("email_masked", MaskEmail(v)) }

// MaskEmail oculta la parte local de un email para logs.
func MaskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}
