package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sasachat/sasachat/pkg/log"
)

// zerologAdapter sends gorm's SQL trace through the context logger so
// queries carry the same request and room fields as the caller.
type zerologAdapter struct {
	level         logger.LogLevel
	slowThreshold time.Duration
}

// NewLogger returns a gorm logger backed by pkg/log.
func NewLogger(level string, slowThreshold time.Duration) logger.Interface {
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}
	return &zerologAdapter{level: parseLogLevel(level), slowThreshold: slowThreshold}
}

func (a *zerologAdapter) LogMode(level logger.LogLevel) logger.Interface {
	cp := *a
	cp.level = level
	return &cp
}

func (a *zerologAdapter) Info(ctx context.Context, msg string, args ...interface{}) {
	if a.level >= logger.Info {
		l := log.Ctx(ctx)
		l.Info().Msgf(msg, args...)
	}
}

func (a *zerologAdapter) Warn(ctx context.Context, msg string, args ...interface{}) {
	if a.level >= logger.Warn {
		l := log.Ctx(ctx)
		l.Warn().Msgf(msg, args...)
	}
}

func (a *zerologAdapter) Error(ctx context.Context, msg string, args ...interface{}) {
	if a.level >= logger.Error {
		l := log.Ctx(ctx)
		l.Error().Msgf(msg, args...)
	}
}

func (a *zerologAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if a.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	l := log.Ctx(ctx)

	switch {
	case err != nil && a.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.Error().Err(err).Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("gorm query failed")
	case elapsed > a.slowThreshold && a.level >= logger.Warn:
		sql, rows := fc()
		l.Warn().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("slow query")
	case a.level >= logger.Info:
		sql, rows := fc()
		l.Debug().Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("gorm query")
	}
}
