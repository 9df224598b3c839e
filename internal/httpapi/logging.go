package httpapi

import (
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, handlers stay quiet and
// rely on middleware logging only.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logInfo() *zerolog.Event {
	if zlog == nil {
		nop := zerolog.Nop()
		return nop.Info()
	}
	return zlog.Info()
}

func logWarn() *zerolog.Event {
	if zlog == nil {
		nop := zerolog.Nop()
		return nop.Warn()
	}
	return zlog.Warn()
}
