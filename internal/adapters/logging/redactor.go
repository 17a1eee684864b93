// Package logging provides slog handlers that redact sensitive values, and
// builds the process logger from configuration.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue is the placeholder for redacted sensitive data.
const RedactedValue = "[REDACTED]"

var defaultSensitiveFields = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"credentials",
	"authorization",
}

// RedactorHandler wraps an slog.Handler to redact sensitive fields.
type RedactorHandler struct {
	handler         slog.Handler
	sensitiveFields map[string]bool
}

// NewRedactorHandler creates a new handler that redacts sensitive fields.
// extra adds field names to the default set.
func NewRedactorHandler(handler slog.Handler, extra ...string) *RedactorHandler {
	fields := make(map[string]bool, len(defaultSensitiveFields)+len(extra))
	for _, f := range defaultSensitiveFields {
		fields[f] = true
	}
	for _, f := range extra {
		fields[strings.ToLower(f)] = true
	}
	return &RedactorHandler{handler: handler, sensitiveFields: fields}
}

// Enabled implements slog.Handler.
func (h *RedactorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler with sensitive data redaction.
//
//nolint:gocritic // Required by slog.Handler interface
func (h *RedactorHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		redacted.AddAttrs(h.redactAttr(attr))
		return true
	})

	if err := h.handler.Handle(ctx, redacted); err != nil {
		return fmt.Errorf("redactor handle failed: %w", err)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *RedactorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redactedAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		redactedAttrs[i] = h.redactAttr(attr)
	}
	return &RedactorHandler{handler: h.handler.WithAttrs(redactedAttrs), sensitiveFields: h.sensitiveFields}
}

// WithGroup implements slog.Handler.
func (h *RedactorHandler) WithGroup(name string) slog.Handler {
	return &RedactorHandler{handler: h.handler.WithGroup(name), sensitiveFields: h.sensitiveFields}
}

func (h *RedactorHandler) redactAttr(attr slog.Attr) slog.Attr {
	if h.isSensitiveField(attr.Key) {
		return slog.String(attr.Key, RedactedValue)
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		redactedAttrs := make([]slog.Attr, len(group))
		for i, groupAttr := range group {
			redactedAttrs[i] = h.redactAttr(groupAttr)
		}
		return slog.Attr{Key: attr.Key, Value: slog.GroupValue(redactedAttrs...)}
	case slog.KindString:
		return slog.String(attr.Key, redactURLPassword(attr.Value.String()))
	default:
		return attr
	}
}

// isSensitiveField matches exact names and compound names such as redis_password.
func (h *RedactorHandler) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	if h.sensitiveFields[lower] {
		return true
	}
	for sensitive := range h.sensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// IsSensitiveField reports whether a field of that name is redacted by
// default.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, sensitive := range defaultSensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// redactURLPassword masks the password of URLs like redis://user:pw@host:6379.
func redactURLPassword(value string) string {
	if !strings.Contains(value, "://") || !strings.Contains(value, "@") {
		return value
	}
	u, err := url.Parse(value)
	if err != nil || u.User == nil {
		return value
	}
	if _, ok := u.User.Password(); !ok {
		return value
	}
	return u.Redacted()
}

// NewLogger builds a redacting logger writing to w. format is "text" or
// "json"; level is any slog level name.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var base slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		base = slog.NewTextHandler(w, opts)
	case "json":
		base = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q: want text or json", format)
	}
	return slog.New(NewRedactorHandler(base)), nil
}
