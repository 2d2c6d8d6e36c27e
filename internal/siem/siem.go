// Package siem implements the SIEM export side of an Alert's lifecycle:
// CEF, JSON, and syslog formatters for outbound alert delivery over a
// single persistent network connection, invoked from the same
// side-effect hook that feeds the live websocket alert stream.
package siem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/sentinel/edr/internal/domain"
)

// Format selects the wire encoding used for exported alerts.
type Format string

const (
	FormatCEF    Format = "cef"
	FormatJSON   Format = "json"
	FormatSyslog Format = "syslog"
)

// Config describes the remote SIEM collector to export alerts to.
type Config struct {
	Enabled bool
	Host    string
	Port    int
	Format  Format
	// Network is "udp" or "tcp"; defaults to "udp" to match the
	// fire-and-forget delivery most SIEM collectors expect for syslog/CEF.
	Network string
}

// Exporter implements domain.AlertSink, formatting each Alert per cfg.Format
// and writing it to the configured collector over a persistent connection.
type Exporter struct {
	logger *slog.Logger
	cfg    Config
	conn   net.Conn
}

// New dials cfg's collector and returns an Exporter. If cfg.Enabled is
// false, New returns a no-op Exporter whose Emit always succeeds without
// sending anything, so callers can wire it unconditionally.
func New(logger *slog.Logger, cfg Config) (*Exporter, error) {
	logger = logger.With("component", "siem", "format", cfg.Format)

	if !cfg.Enabled {
		return &Exporter{logger: logger, cfg: cfg}, nil
	}

	network := cfg.Network
	if network == "" {
		network = "udp"
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial siem collector %s://%s: %w", network, addr, err)
	}

	return &Exporter{logger: logger, cfg: cfg, conn: conn}, nil
}

// Emit formats a and writes it to the collector. Disabled exporters are a
// no-op; write failures are logged and returned so the caller's alert
// pipeline can decide whether to retry or drop.
func (e *Exporter) Emit(ctx context.Context, a domain.Alert) error {
	if !e.cfg.Enabled || e.conn == nil {
		return nil
	}

	var line string
	switch e.cfg.Format {
	case FormatCEF:
		line = formatCEF(a)
	case FormatSyslog:
		line = formatSyslog(a)
	default:
		line = formatJSON(a)
	}

	if _, err := e.conn.Write([]byte(line + "\n")); err != nil {
		e.logger.Warn("siem export failed", "alert_id", a.ID, "error", err)
		return fmt.Errorf("write siem export: %w", err)
	}
	return nil
}

// Close releases the underlying connection, if any.
func (e *Exporter) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Close()
}

// formatJSON renders a as a single JSON line (the default/fallback format).
func formatJSON(a domain.Alert) string {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Sprintf(`{"id":%q,"marshal_error":%q}`, a.ID, err.Error())
	}
	return string(b)
}

// formatCEF renders a in ArcSight Common Event Format:
// CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func formatCEF(a domain.Alert) string {
	ext := fmt.Sprintf("zone=%s act=%s reason=%s", a.Zone, a.Action, cefEscape(a.Reason))
	if a.SessionID != "" {
		ext += " suid=" + a.SessionID
	}
	if a.QuarantineID != "" {
		ext += " cs1=" + a.QuarantineID + " cs1Label=quarantineId"
	}

	return fmt.Sprintf("CEF:0|sentinel|shield|1.0|%s|%s|%d|%s",
		a.Type, a.Type, cefSeverity(a.Severity), ext)
}

// formatSyslog renders a as an RFC 3164-shaped syslog line. Facility is
// fixed at local0 (16); severity maps from domain.Severity.
func formatSyslog(a domain.Alert) string {
	priority := 16*8 + syslogSeverity(a.Severity)
	ts := a.CreatedAt.UTC().Format(time.Stamp)
	return fmt.Sprintf("<%d>%s shield: zone=%s action=%s severity=%s reason=%q",
		priority, ts, a.Zone, a.Action, a.Severity, a.Reason)
}

func cefEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

func cefSeverity(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 10
	case domain.SeverityHigh:
		return 7
	case domain.SeverityMedium:
		return 5
	case domain.SeverityLow:
		return 2
	default:
		return 0
	}
}

func syslogSeverity(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 2 // crit
	case domain.SeverityHigh:
		return 3 // err
	case domain.SeverityMedium:
		return 4 // warning
	case domain.SeverityLow:
		return 5 // notice
	default:
		return 6 // info
	}
}
