package agent

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/wire"
)

// ScanLoop runs the Agent's innate/cognitive detection chain over a stream
// of locally observed events (syscall-shaped lines, prompt content, file
// reads — whatever the host integration feeds in) and reports anything
// detected up to Hive.
type ScanLoop struct {
	scanners []domain.Scanner
	client   *Client
	logger   *slog.Logger
}

// NewScanLoop creates a ScanLoop folding every scanner's verdict together
// via domain.ScanResult.Merge, the same composition the Shield pipeline
// uses across its own scanner chain.
func NewScanLoop(client *Client, logger *slog.Logger, scanners ...domain.Scanner) *ScanLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanLoop{scanners: scanners, client: client, logger: logger}
}

// Run reads newline-delimited events from r until ctx is canceled or r
// returns EOF.
func (l *ScanLoop) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		l.scanOne(ctx, line)
	}
	return scanner.Err()
}

func (l *ScanLoop) scanOne(ctx context.Context, payload []byte) {
	var result domain.ScanResult
	for _, s := range l.scanners {
		r, err := s.Scan(ctx, payload)
		if err != nil {
			l.logger.Warn("scan failed", "scanner", s.Name(), "error", err)
			continue
		}
		result.Merge(r)
	}

	if !result.Detected {
		return
	}

	l.logger.Info("threat detected", "severity", result.Severity, "threat_type", result.ThreatType, "reason", result.Reason)

	if l.client == nil {
		return
	}
	err := l.client.ReportThreat(ctx, wire.ThreatPayload{
		Severity:   result.Severity,
		ThreatType: result.ThreatType,
		PID:        uint32(os.Getpid()),
		UID:        uint32(os.Getuid()),
		Signature:  result.Reason,
	})
	if err != nil {
		l.logger.Warn("failed to report threat to hive", "error", err)
	}
}
