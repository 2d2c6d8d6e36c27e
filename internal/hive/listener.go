package hive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/queue"
	"github.com/sentinel/edr/internal/wire"
)

// Listener accepts Agent<->Hive binary-protocol connections and dispatches
// each decoded message to the Fleet/Catalog/AlertSink it was built with.
// One goroutine per connection.
type Listener struct {
	fleet       *Fleet
	catalog     *Catalog
	sink        domain.AlertSink
	reviewQueue *queue.Queue[domain.QuarantineRecord]
	logger      *slog.Logger
}

// NewListener creates a Listener. reviewQueue may be nil, in which case
// Critical threat reports are not escalated to a quarantine review queue.
func NewListener(fleet *Fleet, catalog *Catalog, sink domain.AlertSink, reviewQueue *queue.Queue[domain.QuarantineRecord], logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{fleet: fleet, catalog: catalog, sink: sink, reviewQueue: reviewQueue, logger: logger}
}

// Serve accepts connections on ln until ctx is canceled or Accept fails.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go l.handleConn(ctx, conn)
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var agentID uint64
	var puzzle *Puzzle
	for {
		header, payload, err := readMessage(conn)
		if err != nil {
			if err != io.EOF {
				l.logger.Warn("wire read failed", "error", err, "remote", conn.RemoteAddr())
			}
			return
		}
		if agentID == 0 && header.Type != wire.TypeRegister && header.Type != wire.TypeChallengeRequest {
			agentID = header.AgentID
		}
		if agentID != 0 && l.fleet.IsBlacklisted(agentID) {
			l.logger.Warn("rejecting message from blacklisted agent", "agent_id", agentID)
			return
		}

		reply, replyType, err := l.dispatch(ctx, header, payload, &agentID, &puzzle)
		if err != nil {
			l.logger.Warn("message handling failed", "error", err, "type", header.Type)
			continue
		}
		if reply == nil {
			continue
		}

		out, err := wire.Encode(wire.Header{
			Version:   wire.ProtocolVersion,
			Type:      replyType,
			Timestamp: uint64(time.Now().Unix()),
			AgentID:   agentID,
			Sequence:  header.Sequence,
		}, reply)
		if err != nil {
			l.logger.Warn("reply encode failed", "error", err)
			continue
		}
		if _, err := conn.Write(out); err != nil {
			l.logger.Warn("reply write failed", "error", err)
			return
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, h wire.Header, payload []byte, agentID *uint64, puzzle **Puzzle) ([]byte, wire.Type, error) {
	switch h.Type {
	case wire.TypeChallengeRequest:
		p, err := NewPuzzle(SybilPoWDifficulty)
		if err != nil {
			return nil, 0, err
		}
		*puzzle = p
		return wire.EncodeChallenge(wire.ChallengePayload{
			Challenge:  p.Challenge,
			Difficulty: p.Difficulty,
			Expires:    p.Expires.Unix(),
		}), wire.TypeChallenge, nil

	case wire.TypeRegister:
		req, err := wire.DecodeRegister(payload)
		if err != nil {
			return nil, 0, err
		}
		if *puzzle == nil {
			return nil, 0, errors.New("hive: registration requires a solved challenge")
		}
		if !VerifyPoW(*puzzle, req.Nonce, req.Hash) {
			return nil, 0, errors.New("hive: invalid proof-of-work solution")
		}
		*puzzle = nil
		rec := l.fleet.Register(req.Hostname, req.PubKey)
		*agentID = rec.AgentID
		l.logger.Info("agent registered", "agent_id", rec.AgentID, "hostname", rec.Hostname)
		return wire.EncodeRegisterAck(wire.RegisterAckPayload{AgentID: rec.AgentID}), wire.TypeRegisterAck, nil

	case wire.TypeHeartbeat:
		l.fleet.Heartbeat(h.AgentID, h.Sequence)
		return nil, 0, nil

	case wire.TypeThreat:
		t, err := wire.DecodeThreat(payload)
		if err != nil {
			return nil, 0, err
		}
		l.fleet.RecordThreat(h.AgentID)
		alertID := uuid.NewString()
		if l.sink != nil {
			_ = l.sink.Emit(ctx, domain.Alert{
				ID:        alertID,
				Type:      domain.AlertTypeInnate,
				Severity:  t.Severity,
				Action:    domain.ActionLog,
				Reason:    t.Signature,
				CreatedAt: time.Now(),
				Metadata: map[string]any{
					"agent_id":    h.AgentID,
					"pid":         t.PID,
					"uid":         t.UID,
					"threat_type": t.ThreatType,
				},
			})
		}
		if l.reviewQueue != nil && t.Severity == domain.SeverityCritical {
			if err := l.reviewQueue.Push(domain.QuarantineRecord{
				ID:        alertID,
				Reason:    t.Signature,
				CreatedAt: time.Now().Unix(),
			}); err != nil {
				l.logger.Warn("quarantine review enqueue failed", "error", err)
			}
		}
		return nil, 0, nil

	case wire.TypeStats:
		return nil, 0, nil

	case wire.TypeSignatureRequest:
		req, err := wire.DecodeSignatureRequest(payload)
		if err != nil {
			return nil, 0, err
		}
		info, available, err := l.catalog.CheckUpdate(ctx, req.LastSync)
		if err != nil {
			return nil, 0, err
		}
		if !available {
			return []byte{}, wire.TypeSignature, nil
		}
		data, err := l.catalog.Download(ctx, info.Version)
		if err != nil {
			return nil, 0, err
		}
		l.fleet.RecordSync(h.AgentID, info.Version)
		return data, wire.TypeSignature, nil

	default:
		return nil, 0, errors.New("hive: unknown message type")
	}
}

// readMessage reads one HeaderSize-prefixed frame off conn.
func readMessage(conn net.Conn) (wire.Header, []byte, error) {
	head := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(conn, head); err != nil {
		return wire.Header{}, nil, err
	}

	length := headerLength(head)
	if length > wire.MaxPayloadSize {
		return wire.Header{}, nil, errors.New("hive: payload too large")
	}

	buf := make([]byte, wire.HeaderSize+length)
	copy(buf, head)
	if length > 0 {
		if _, err := io.ReadFull(conn, buf[wire.HeaderSize:]); err != nil {
			return wire.Header{}, nil, err
		}
	}

	return wire.Decode(buf)
}

// headerLength extracts the Length field (bytes 4:8, little-endian)
// without fully decoding the header, since Decode needs the payload
// present to verify the checksum.
func headerLength(head []byte) uint32 {
	return uint32(head[4]) | uint32(head[5])<<8 | uint32(head[6])<<16 | uint32(head[7])<<24
}
