// Package audit provides a structured audit logger for CLI command invocations.
// It logs the command name, the config file that was read and the resolved
// settings, so operators can trace what happened without exposing secrets.
//
// Secrets are logged as presence/absence only, never their values.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Entry is one resolved setting included in the audit log.
type Entry struct {
	// Key is the environment variable name that backs the setting.
	Key string
	// Value is the resolved value.
	Value string
	// Secret redacts Value to presence/absence.
	Secret bool
}

// LogCommandStart emits a structured audit log entry when a CLI command begins.
// It records the command name, config file source and sanitised settings.
func LogCommandStart(ctx context.Context, log *slog.Logger, command, configPath string, entries []Entry) {
	attrs := make([]slog.Attr, 0, len(entries)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, e := range entries {
		attrs = append(attrs, slog.String(e.Key, e.Sanitised()))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// Sanitised returns "set" or "unset" for secrets, or the value (or "unset")
// otherwise. It is safe to use in log messages.
func (e Entry) Sanitised() string {
	if e.Secret {
		return presence(e.Value)
	}
	return valOrUnset(e.Value)
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	// Redact home directory for privacy in logs.
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
