package logger

import (
	"go.uber.org/zap"
)

func WithSessionID(sessionID string) zap.Field {
	return zap.String("session.id", sessionID)
}

func WithOffset(offset int64) zap.Field {
	return zap.Int64("device.offset", offset)
}

func WithCount(count int64) zap.Field {
	return zap.Int64("device.count", count)
}
