package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func selectDeliveries() (string, int64) {
	return "SELECT * FROM deliveries", 3
}

func TestNewGormLogger(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info, time.Second)
	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	assert.Equal(t, time.Second, gormLog.slowThreshold)

	defaulted := NewGormLogger(nil, gormlogger.Warn, 0)
	assert.Equal(t, DefaultSlowQueryThreshold, defaulted.slowThreshold)
	assert.NotNil(t, defaulted.logger)
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info, 0)
	newLogger := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	newGormLog, ok := newLogger.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, newGormLog.logLevel)
}

func TestGormLogger_Messages(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Warn, 0)

	gormLog.Info(context.Background(), "suppressed %s", "info")
	gormLog.Warn(context.Background(), "warn %d", 1)
	gormLog.Error(context.Background(), "error %d", 2)

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "warn 1", logs[0].Message)
	assert.Equal(t, "error 2", logs[1].Message)
	assert.Equal(t, "gorm", logs[0].LoggerName)
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		slow    time.Duration
		begin   time.Time
		err     error
		wantMsg string
	}{
		{name: "error", level: gormlogger.Error, begin: time.Now(), err: errors.New("db down"), wantMsg: "SQL Error"},
		{name: "record not found ignored", level: gormlogger.Error, begin: time.Now(), err: gormlogger.ErrRecordNotFound},
		{name: "record not found is not a slow query", level: gormlogger.Info, slow: time.Nanosecond, begin: time.Now().Add(-time.Second), err: gormlogger.ErrRecordNotFound},
		{
			name:    "slow query",
			level:   gormlogger.Warn,
			slow:    time.Nanosecond,
			begin:   time.Now().Add(-time.Second),
			wantMsg: "SLOW SQL >= 1ns",
		},
		{name: "normal query", level: gormlogger.Info, begin: time.Now(), wantMsg: "SQL Query"},
		{name: "silent", level: gormlogger.Silent, begin: time.Now(), err: errors.New("ignored")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gormLog := NewGormLogger(zap.New(core), tt.level, tt.slow)

			gormLog.Trace(context.Background(), tt.begin, selectDeliveries, tt.err)

			if tt.wantMsg == "" {
				assert.Empty(t, recorded.All())
				return
			}
			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantMsg, logs[0].Message)
		})
	}
}

func TestGormLogger_Trace_WithMessageID(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info, 0)

	ctx := context.WithValue(context.Background(), MessageIDKey, "wamid.1")
	gormLog.Trace(ctx, time.Now(), selectDeliveries, nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "wamid.1", logs[0].ContextMap()["message_id"])
	assert.Equal(t, "SELECT * FROM deliveries", logs[0].ContextMap()["sql"])
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}

func TestGormLoggerImplementsInterface(t *testing.T) {
	var _ gormlogger.Interface = NewGormLogger(zap.NewNop(), gormlogger.Info, 0)
}
