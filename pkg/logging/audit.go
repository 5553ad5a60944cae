package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// AuditLogger records security-relevant events: login outcomes, lockouts,
// session changes, user creation. Lines use a stable logfmt layout so the
// log can be grepped and shipped.
type AuditLogger interface {
	// LogAuth logs an authentication event for a user
	LogAuth(operation string, user string, status string, details ...interface{})
}

type auditLogger struct {
	logger *log.Logger
}

// NewAuditLogger creates an audit logger. An empty path discards output.
func NewAuditLogger(logPath string) (AuditLogger, error) {
	var writer io.Writer

	if logPath == "" {
		writer = io.Discard
	} else {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening audit log file: %w", err)
		}
		writer = f
	}

	return &auditLogger{
		logger: log.New(writer, "", 0), // No flags, we'll handle formatting ourselves
	}, nil
}

func (l *auditLogger) LogAuth(operation string, user string, status string, details ...interface{}) {
	var parts []string
	parts = append(parts, fmt.Sprintf("op=%s", formatValue(operation)))
	if user != "" {
		parts = append(parts, fmt.Sprintf("user=%s", formatValue(user)))
	}
	parts = append(parts, fmt.Sprintf("status=%s", formatValue(status)))

	if kv := formatKeyvals(details); kv != "" {
		parts = append(parts, kv)
	}

	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 -0700")
	l.logger.Printf("%s %s", timestamp, strings.Join(parts, " "))
}

// NopAudit is an AuditLogger that discards everything.
type NopAudit struct{}

func (NopAudit) LogAuth(operation string, user string, status string, details ...interface{}) {}
