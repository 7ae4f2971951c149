package badger

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// zapBadgerLogger routes badger's internal logs into the ledger's zap logger.
// Badger reports every compaction and value log rotation at info, so those land at debug here.
type zapBadgerLogger struct {
	sugar *zap.SugaredLogger
}

var _ badgerdb.Logger = (*zapBadgerLogger)(nil)

func newZapBadgerLogger(l *zap.Logger) *zapBadgerLogger {
	return &zapBadgerLogger{sugar: l.With(zap.String("component", "badger")).Sugar()}
}

func (z *zapBadgerLogger) Errorf(format string, args ...interface{}) {
	z.sugar.Error(fmt.Sprintf(format, args...))
}

func (z *zapBadgerLogger) Warningf(format string, args ...interface{}) {
	z.sugar.Warn(fmt.Sprintf(format, args...))
}

func (z *zapBadgerLogger) Infof(format string, args ...interface{}) {
	z.sugar.Debug(fmt.Sprintf(format, args...))
}

func (z *zapBadgerLogger) Debugf(format string, args ...interface{}) {
	z.sugar.Debug(fmt.Sprintf(format, args...))
}
