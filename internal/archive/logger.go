package archive

import (
	"go.uber.org/zap"
)

// ElasticLogger routes elastic trace output through the global zap logger.
type ElasticLogger struct{}

func (l ElasticLogger) Printf(format string, v ...interface{}) {
	zap.S().Debugf(format, v...)
}
