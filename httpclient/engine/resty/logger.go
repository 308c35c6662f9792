package resty

import (
	"github.com/kbukum/anyhttp/logger"
)

// logBridge routes resty's printf-style logging into zerolog.
type logBridge struct {
	log *logger.Logger
}

func newLogBridge(l *logger.Logger) *logBridge {
	return &logBridge{log: l}
}

func (b *logBridge) Errorf(format string, v ...interface{}) {
	zl := b.log.GetLogger()
	zl.Error().Msgf(format, v...)
}

func (b *logBridge) Warnf(format string, v ...interface{}) {
	zl := b.log.GetLogger()
	zl.Warn().Msgf(format, v...)
}

func (b *logBridge) Debugf(format string, v ...interface{}) {
	zl := b.log.GetLogger()
	zl.Debug().Msgf(format, v...)
}
