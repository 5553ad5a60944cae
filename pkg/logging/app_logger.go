package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// AppLogger writes leveled logfmt lines to stdout or a rotating log file.
type AppLogger struct {
	level  Level
	logger *log.Logger
	writer *RotatingWriter // nil if logging to stdout
}

// NewAppLogger creates an application logger. If logPath is empty the
// logger writes to stdout, otherwise to a size-capped rotating file.
func NewAppLogger(logPath string, level Level, maxSize int64) (*AppLogger, error) {
	if level == "" {
		level = LevelInfo
	}

	var writer io.Writer = os.Stdout
	var rotatingWriter *RotatingWriter

	if logPath != "" {
		rw, err := NewRotatingWriter(logPath, maxSize)
		if err != nil {
			return nil, fmt.Errorf("creating rotating writer: %w", err)
		}
		writer = rw
		rotatingWriter = rw
	}

	return &AppLogger{
		level:  level,
		logger: log.New(writer, "", 0), // No flags, we'll handle formatting ourselves
		writer: rotatingWriter,
	}, nil
}

func (l *AppLogger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	return levels[level] >= levels[l.level]
}

func (l *AppLogger) log(level Level, message string, keyvals ...interface{}) {
	if !l.shouldLog(level) {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 -0700")
	kvStr := formatKeyvals(keyvals)
	line := fmt.Sprintf("%s %s: %s", timestamp, level, message)
	if kvStr != "" {
		line += " " + kvStr
	}
	l.logger.Print(strings.TrimRight(line, " "))
}

// Debug implements Logger
func (l *AppLogger) Debug(message string, keyvals ...interface{}) {
	l.log(LevelDebug, message, keyvals...)
}

// Info implements Logger
func (l *AppLogger) Info(message string, keyvals ...interface{}) {
	l.log(LevelInfo, message, keyvals...)
}

// Warn implements Logger
func (l *AppLogger) Warn(message string, keyvals ...interface{}) {
	l.log(LevelWarn, message, keyvals...)
}

// Error implements Logger
func (l *AppLogger) Error(message string, keyvals ...interface{}) {
	l.log(LevelError, message, keyvals...)
}

// Close releases the underlying log file, if any
func (l *AppLogger) Close() error {
	if l.writer != nil {
		return l.writer.Close()
	}
	return nil
}
