package hive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/queue"
	"github.com/sentinel/edr/internal/wire"
)

type fakeSink struct {
	emitted []domain.Alert
}

func (f *fakeSink) Emit(ctx context.Context, a domain.Alert) error {
	f.emitted = append(f.emitted, a)
	return nil
}

// solvedRegisterPayload drives a Listener through a full challenge/solve
// handshake and returns the TypeRegister payload the caller should send
// next, leaving l's dispatch-scoped puzzle in the same state an Agent's
// connection would leave it in.
func solvedRegisterPayload(t *testing.T, l *Listener, puzzle **Puzzle, agentID *uint64, hostname string) []byte {
	t.Helper()
	reply, replyType, err := l.dispatch(context.Background(), wire.Header{Type: wire.TypeChallengeRequest}, nil, agentID, puzzle)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeChallenge, replyType)

	ch, err := wire.DecodeChallenge(reply)
	require.NoError(t, err)

	nonce, hash, ok := SolvePoW(&Puzzle{Challenge: ch.Challenge, Difficulty: ch.Difficulty, Expires: (*puzzle).Expires})
	require.True(t, ok)

	return wire.EncodeRegister(wire.RegisterPayload{Hostname: hostname, Nonce: nonce, Hash: hash})
}

func TestListenerDispatchRegister(t *testing.T) {
	l := NewListener(NewFleet(nil), NewCatalog(samplePatterns()), nil, nil, nil)

	var agentID uint64
	var puzzle *Puzzle
	payload := solvedRegisterPayload(t, l, &puzzle, &agentID, "host-x")

	reply, replyType, err := l.dispatch(context.Background(), wire.Header{Type: wire.TypeRegister}, payload, &agentID, &puzzle)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeRegisterAck, replyType)

	ack, err := wire.DecodeRegisterAck(reply)
	require.NoError(t, err)
	assert.NotZero(t, ack.AgentID)

	_, ok := l.fleet.Get(ack.AgentID)
	assert.True(t, ok)
}

func TestListenerDispatchRegisterWithoutChallengeFails(t *testing.T) {
	l := NewListener(NewFleet(nil), NewCatalog(nil), nil, nil, nil)

	var agentID uint64
	var puzzle *Puzzle
	payload := wire.EncodeRegister(wire.RegisterPayload{Hostname: "host-x"})
	_, _, err := l.dispatch(context.Background(), wire.Header{Type: wire.TypeRegister}, payload, &agentID, &puzzle)
	assert.Error(t, err)
}

func TestListenerDispatchHeartbeatUpdatesFleet(t *testing.T) {
	fleet := NewFleet(nil)
	rec := fleet.Register("host-x", [32]byte{1})
	l := NewListener(fleet, NewCatalog(nil), nil, nil, nil)

	var agentID uint64
	var puzzle *Puzzle
	_, _, err := l.dispatch(context.Background(), wire.Header{Type: wire.TypeHeartbeat, AgentID: rec.AgentID, Sequence: 7}, nil, &agentID, &puzzle)
	require.NoError(t, err)

	got, ok := fleet.Get(rec.AgentID)
	require.True(t, ok)
	assert.EqualValues(t, 7, got.LastSeqNumber)
}

func TestListenerDispatchThreatEmitsAlertAndEnqueuesCritical(t *testing.T) {
	fleet := NewFleet(nil)
	rec := fleet.Register("host-x", [32]byte{1})
	sink := &fakeSink{}
	rq := queue.New[domain.QuarantineRecord](4)
	l := NewListener(fleet, NewCatalog(nil), sink, rq, nil)

	payload := wire.EncodeThreat(wire.ThreatPayload{
		Severity:   domain.SeverityCritical,
		ThreatType: domain.ThreatTypeMalware,
		PID:        123,
		UID:        0,
		Signature:  "rm -rf /",
	})

	var agentID uint64
	var puzzle *Puzzle
	_, _, err := l.dispatch(context.Background(), wire.Header{Type: wire.TypeThreat, AgentID: rec.AgentID}, payload, &agentID, &puzzle)
	require.NoError(t, err)

	require.Len(t, sink.emitted, 1)
	assert.Equal(t, domain.SeverityCritical, sink.emitted[0].Severity)

	got, ok := fleet.Get(rec.AgentID)
	require.True(t, ok)
	assert.EqualValues(t, 1, got.ThreatsReported)

	queued, ok, err := rq.Pop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rm -rf /", queued.Reason)
}

func TestListenerDispatchThreatLowSeverityNotEnqueued(t *testing.T) {
	fleet := NewFleet(nil)
	rec := fleet.Register("host-x", [32]byte{1})
	rq := queue.New[domain.QuarantineRecord](4)
	l := NewListener(fleet, NewCatalog(nil), nil, rq, nil)

	payload := wire.EncodeThreat(wire.ThreatPayload{
		Severity:   domain.SeverityLow,
		ThreatType: domain.ThreatTypeMalware,
		Signature:  "noisy",
	})

	var agentID uint64
	var puzzle *Puzzle
	_, _, err := l.dispatch(context.Background(), wire.Header{Type: wire.TypeThreat, AgentID: rec.AgentID}, payload, &agentID, &puzzle)
	require.NoError(t, err)
	assert.Zero(t, rq.Len())
}

func TestListenerDispatchSignatureRequestUpdatesFleetSync(t *testing.T) {
	fleet := NewFleet(nil)
	rec := fleet.Register("host-x", [32]byte{1})
	catalog := NewCatalog(samplePatterns())
	l := NewListener(fleet, catalog, nil, nil, nil)

	payload := wire.EncodeSignatureRequest(wire.SignatureRequestPayload{LastSync: 0})

	var agentID uint64
	var puzzle *Puzzle
	reply, replyType, err := l.dispatch(context.Background(), wire.Header{Type: wire.TypeSignatureRequest, AgentID: rec.AgentID}, payload, &agentID, &puzzle)
	require.NoError(t, err)
	assert.Equal(t, wire.TypeSignature, replyType)
	assert.NotEmpty(t, reply)

	got, ok := fleet.Get(rec.AgentID)
	require.True(t, ok)
	assert.EqualValues(t, catalog.Version(), got.SignatureVersion)
}

func TestListenerDispatchUnknownType(t *testing.T) {
	l := NewListener(NewFleet(nil), NewCatalog(nil), nil, nil, nil)
	var agentID uint64
	var puzzle *Puzzle
	_, _, err := l.dispatch(context.Background(), wire.Header{Type: wire.Type(99)}, nil, &agentID, &puzzle)
	assert.Error(t, err)
}
