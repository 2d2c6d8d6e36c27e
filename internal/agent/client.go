// Package agent implements the endpoint-side half of the Agent<->Hive
// binary protocol: connecting, registering, heartbeats,
// threat reporting, and signature pull, wrapped in a circuit breaker so a
// Hive outage degrades to local-only enforcement instead of blocking the
// scan loop.
package agent

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentinel/edr/internal/circuit"
	"github.com/sentinel/edr/internal/hive"
	"github.com/sentinel/edr/internal/shielderr"
	"github.com/sentinel/edr/internal/syncsig"
	"github.com/sentinel/edr/internal/wire"
)

// ReconnectDelay is the fixed wait between failed Hive reconnect attempts.
// Grounded on the constant-backoff policy (BACKOFF_CONSTANT) the original
// retry implementation calls "conservative": a fixed, unjittered delay is
// the right choice here since reconnect keeps trying for the Agent's whole
// process lifetime rather than a bounded request.
const ReconnectDelay = 5 * time.Second

// Client manages one Agent's connection to Hive: registration, heartbeats,
// threat reports, and signature sync. It implements syncsig.Source so an
// Agent can drive its local syncsig.Store directly off this connection.
type Client struct {
	addr     string
	hostname string
	pubKey   [32]byte

	mu      sync.Mutex
	conn    net.Conn
	agentID uint64
	seq     atomic.Uint32

	breaker *circuit.Breaker

	// pendingVersion/pendingData/pendingChecksum cache the result of the
	// last CheckUpdate network round trip so Download can return it
	// without a second round trip, since the wire protocol answers
	// SIGNATURE_REQUEST with the full blob in one reply rather than a
	// separate check/download pair.
	pendingVersion  uint64
	pendingData     []byte
	pendingChecksum string
}

// New creates a Client targeting addr (Hive's wire listener, "host:port").
// A fresh identity key pair is generated for this Client's lifetime; Hive
// uses it to tell repeat registrations from the same endpoint apart from a
// fleet of newly spun-up Sybils.
func New(addr, hostname string) *Client {
	c := &Client{
		addr:     addr,
		hostname: hostname,
		breaker:  circuit.New("hive-wire", 5, 2, 30*time.Second),
	}
	_, _ = rand.Read(c.pubKey[:])
	return c
}

// Connect dials Hive, solves the proof-of-work challenge Hive issues to
// gate registration, and performs REGISTER/REGISTER_ACK.
func (c *Client) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("agent: dial hive: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	challengeReply, err := c.roundTrip(wire.TypeChallengeRequest, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("agent: challenge request: %w", err)
	}
	challenge, err := wire.DecodeChallenge(challengeReply)
	if err != nil {
		conn.Close()
		return fmt.Errorf("agent: decode challenge: %w", err)
	}

	puzzle := &hive.Puzzle{
		Challenge:  challenge.Challenge,
		Difficulty: challenge.Difficulty,
		Expires:    time.Unix(challenge.Expires, 0),
	}
	nonce, hash, ok := hive.SolvePoW(puzzle)
	if !ok {
		conn.Close()
		return fmt.Errorf("agent: proof-of-work puzzle expired before solving")
	}

	reply, err := c.roundTrip(wire.TypeRegister, wire.EncodeRegister(wire.RegisterPayload{
		Hostname: c.hostname,
		PubKey:   c.pubKey,
		Nonce:    nonce,
		Hash:     hash,
	}))
	if err != nil {
		conn.Close()
		return fmt.Errorf("agent: register: %w", err)
	}
	ack, err := wire.DecodeRegisterAck(reply)
	if err != nil {
		conn.Close()
		return fmt.Errorf("agent: decode register ack: %w", err)
	}
	c.agentID = ack.AgentID
	return nil
}

// Reconnect calls Connect in a loop with a fixed delay between failed
// attempts, until it succeeds or ctx is canceled. Unlike a single Connect
// call, this is meant to run for as long as the Agent needs to recover
// from a transient Hive outage, instead of degrading to local-only
// enforcement permanently after one failed attempt.
func (c *Client) Reconnect(ctx context.Context) error {
	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ReconnectDelay):
		}
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// AgentID returns the ID Hive assigned this agent at registration.
func (c *Client) AgentID() uint64 { return c.agentID }

// Heartbeat sends a HEARTBEAT message. Failures count against the circuit
// breaker; callers should treat a breaker-open error as "degrade to
// local-only enforcement" rather than retrying aggressively.
func (c *Client) Heartbeat(ctx context.Context) error {
	if !c.breaker.Allow() {
		return shielderr.New(shielderr.KindUnsupported, "agent: hive circuit open")
	}
	_, err := c.roundTripNoReply(wire.TypeHeartbeat, nil)
	c.record(err)
	return err
}

// ReportThreat sends a TypeThreat message describing a locally detected
// threat.
func (c *Client) ReportThreat(ctx context.Context, t wire.ThreatPayload) error {
	if !c.breaker.Allow() {
		return shielderr.New(shielderr.KindUnsupported, "agent: hive circuit open")
	}
	_, err := c.roundTripNoReply(wire.TypeThreat, wire.EncodeThreat(t))
	c.record(err)
	return err
}

// CheckUpdate implements syncsig.Source: it sends SIGNATURE_REQUEST and
// interprets whatever comes back, caching the blob for the Download call
// that follows.
func (c *Client) CheckUpdate(ctx context.Context, currentVersion uint64) (syncsig.UpdateInfo, bool, error) {
	if !c.breaker.Allow() {
		return syncsig.UpdateInfo{}, false, shielderr.New(shielderr.KindUnsupported, "agent: hive circuit open")
	}

	reply, err := c.roundTrip(wire.TypeSignatureRequest, wire.EncodeSignatureRequest(wire.SignatureRequestPayload{LastSync: currentVersion}))
	c.record(err)
	if err != nil {
		return syncsig.UpdateInfo{}, false, err
	}
	if len(reply) == 0 {
		return syncsig.UpdateInfo{}, false, nil
	}

	// The wire SIGNATURE reply carries only the blob; Hive only ever sends
	// one when it is ahead of currentVersion, so the new version is simply
	// one generation past what the Agent already holds.
	sum := sha256.Sum256(reply)
	info := syncsig.UpdateInfo{
		Version:     currentVersion + 1,
		ChecksumHex: hex.EncodeToString(sum[:]),
		SizeBytes:   len(reply),
	}

	c.pendingData = reply
	c.pendingChecksum = info.ChecksumHex
	c.pendingVersion = info.Version
	return info, true, nil
}

// Download returns the blob CheckUpdate already fetched for version.
func (c *Client) Download(ctx context.Context, version uint64) ([]byte, error) {
	if version != c.pendingVersion || c.pendingData == nil {
		return nil, shielderr.New(shielderr.KindInvalidInput, "agent: no pending blob for requested version")
	}
	return c.pendingData, nil
}

func (c *Client) record(err error) {
	if err != nil {
		c.breaker.Failure()
		return
	}
	c.breaker.Success()
}

// roundTrip writes a message and waits for Hive's reply, returning its
// payload.
func (c *Client) roundTrip(msgType wire.Type, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, shielderr.New(shielderr.KindIoFailure, "agent: not connected")
	}

	seq := c.seq.Add(1)
	out, err := wire.Encode(wire.Header{
		Version:   wire.ProtocolVersion,
		Type:      msgType,
		Timestamp: uint64(time.Now().Unix()),
		AgentID:   c.agentID,
		Sequence:  seq,
	}, payload)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(out); err != nil {
		return nil, err
	}

	head := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(c.conn, head); err != nil {
		return nil, err
	}
	length := headerLength(head)
	buf := make([]byte, wire.HeaderSize+length)
	copy(buf, head)
	if length > 0 {
		if _, err := io.ReadFull(c.conn, buf[wire.HeaderSize:]); err != nil {
			return nil, err
		}
	}
	_, reply, err := wire.Decode(buf)
	return reply, err
}

// roundTripNoReply writes a fire-and-forget message (HEARTBEAT, THREAT)
// that Hive does not acknowledge.
func (c *Client) roundTripNoReply(msgType wire.Type, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, shielderr.New(shielderr.KindIoFailure, "agent: not connected")
	}

	seq := c.seq.Add(1)
	out, err := wire.Encode(wire.Header{
		Version:   wire.ProtocolVersion,
		Type:      msgType,
		Timestamp: uint64(time.Now().Unix()),
		AgentID:   c.agentID,
		Sequence:  seq,
	}, payload)
	if err != nil {
		return nil, err
	}
	_, err = c.conn.Write(out)
	return nil, err
}

func headerLength(head []byte) uint32 {
	return uint32(head[4]) | uint32(head[5])<<8 | uint32(head[6])<<16 | uint32(head[7])<<24
}
