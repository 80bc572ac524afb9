package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs an upstream API request at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		OrGlobal(l).ErrorWithFields("API request server error", fields)
	case statusCode >= 400:
		OrGlobal(l).WarnWithFields("API request client error", fields)
	default:
		OrGlobal(l).DebugWithFields("API request completed", fields)
	}
}

// LogProgress logs how far a pipeline stage has come
func LogProgress(l Logger, stage string, done, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}

	OrGlobal(l).WithFields(map[string]interface{}{
		"stage":      stage,
		"done":       done,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	}).Info("Progress")
}

// LogStageStart logs the start of a pipeline stage with its settings
func LogStageStart(l Logger, stage string, settings map[string]interface{}) {
	log := OrGlobal(l).WithField("stage", stage)
	if len(settings) > 0 {
		log = log.WithFields(settings)
	}
	log.Info("Stage started")
}

// LogStageStop logs the end of a pipeline stage with its outcome
func LogStageStop(l Logger, stage string, elapsed time.Duration, outcome map[string]interface{}) {
	fields := map[string]interface{}{
		"stage":   stage,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	}
	for k, v := range outcome {
		fields[k] = v
	}
	OrGlobal(l).InfoWithFields("Stage finished", fields)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
