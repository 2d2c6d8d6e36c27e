package agent

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel/edr/internal/hive"
	"github.com/sentinel/edr/internal/wire"
)

// readFrame reads one HeaderSize-prefixed frame off conn, mirroring
// internal/hive's own frame reader.
func readFrame(conn net.Conn) (wire.Header, []byte, error) {
	head := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(conn, head); err != nil {
		return wire.Header{}, nil, err
	}
	length := headerLength(head)
	buf := make([]byte, wire.HeaderSize+length)
	copy(buf, head)
	if length > 0 {
		if _, err := io.ReadFull(conn, buf[wire.HeaderSize:]); err != nil {
			return wire.Header{}, nil, err
		}
	}
	return wire.Decode(buf)
}

func writeFrame(conn net.Conn, h wire.Header, payload []byte) error {
	out, err := wire.Encode(h, payload)
	if err != nil {
		return err
	}
	_, err = conn.Write(out)
	return err
}

// newPipedClient returns a Client wired to one end of a net.Pipe, with the
// other end handed to the caller to play Hive.
func newPipedClient(t *testing.T) (*Client, net.Conn) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	c := New("unused", "host-under-test")
	c.conn = clientSide
	return c, serverSide
}

func TestClientHeartbeatSendsFrame(t *testing.T) {
	c, server := newPipedClient(t)
	defer server.Close()

	done := make(chan wire.Header, 1)
	go func() {
		h, _, err := readFrame(server)
		require.NoError(t, err)
		done <- h
	}()

	err := c.Heartbeat(context.Background())
	require.NoError(t, err)

	select {
	case h := <-done:
		assert.Equal(t, wire.TypeHeartbeat, h.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat frame")
	}
}

func TestClientReportThreatSendsFrame(t *testing.T) {
	c, server := newPipedClient(t)
	defer server.Close()

	done := make(chan []byte, 1)
	go func() {
		_, payload, err := readFrame(server)
		require.NoError(t, err)
		done <- payload
	}()

	err := c.ReportThreat(context.Background(), wire.ThreatPayload{Signature: "test-signature"})
	require.NoError(t, err)

	select {
	case payload := <-done:
		decoded, err := wire.DecodeThreat(payload)
		require.NoError(t, err)
		assert.Equal(t, "test-signature", decoded.Signature)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for threat frame")
	}
}

func TestClientCheckUpdateCachesBlobForDownload(t *testing.T) {
	c, server := newPipedClient(t)
	defer server.Close()

	go func() {
		h, _, err := readFrame(server)
		if err != nil {
			return
		}
		_ = writeFrame(server, wire.Header{Type: wire.TypeSignature, Sequence: h.Sequence}, []byte("signature-blob"))
	}()

	info, available, err := c.CheckUpdate(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, available)
	assert.EqualValues(t, 4, info.Version)
	assert.NotEmpty(t, info.ChecksumHex)

	data, err := c.Download(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "signature-blob", string(data))
}

func TestClientDownloadRejectsUnknownVersion(t *testing.T) {
	c, server := newPipedClient(t)
	defer server.Close()

	_, err := c.Download(context.Background(), 99)
	assert.Error(t, err)
}

func TestClientAgentIDDefaultsToZero(t *testing.T) {
	c := New("unused", "host-under-test")
	assert.Zero(t, c.AgentID())
}

// fakeHiveSide plays Hive's half of the challenge/register handshake on
// server (one end of a connection the caller already opened), with a
// puzzle easy enough to solve instantly (difficulty 1).
func fakeHiveSide(t *testing.T, server net.Conn) {
	t.Helper()

	h, _, err := readFrame(server)
	require.NoError(t, err)
	require.Equal(t, wire.TypeChallengeRequest, h.Type)

	puzzle, err := hive.NewPuzzle(1)
	require.NoError(t, err)
	require.NoError(t, writeFrame(server, wire.Header{Type: wire.TypeChallenge, Sequence: h.Sequence}, wire.EncodeChallenge(wire.ChallengePayload{
		Challenge:  puzzle.Challenge,
		Difficulty: puzzle.Difficulty,
		Expires:    puzzle.Expires.Unix(),
	})))

	h, payload, err := readFrame(server)
	require.NoError(t, err)
	require.Equal(t, wire.TypeRegister, h.Type)

	req, err := wire.DecodeRegister(payload)
	require.NoError(t, err)
	require.True(t, hive.VerifyPoW(puzzle, req.Nonce, req.Hash))

	require.NoError(t, writeFrame(server, wire.Header{Type: wire.TypeRegisterAck, Sequence: h.Sequence}, wire.EncodeRegisterAck(wire.RegisterAckPayload{AgentID: 42})))
}

func TestClientConnectSolvesChallengeAndRegisters(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()

	c := New("unused", "host-under-test")
	c.conn = clientSide

	done := make(chan struct{})
	go func() {
		fakeHiveSide(t, serverSide)
		close(done)
	}()

	// Connect redials c.addr itself, so drive the handshake directly
	// against the piped connection already assigned above instead.
	reply, err := c.roundTrip(wire.TypeChallengeRequest, nil)
	require.NoError(t, err)
	ch, err := wire.DecodeChallenge(reply)
	require.NoError(t, err)

	nonce, hash, ok := hive.SolvePoW(&hive.Puzzle{Challenge: ch.Challenge, Difficulty: ch.Difficulty, Expires: time.Unix(ch.Expires, 0)})
	require.True(t, ok)

	reply, err = c.roundTrip(wire.TypeRegister, wire.EncodeRegister(wire.RegisterPayload{Hostname: c.hostname, Nonce: nonce, Hash: hash}))
	require.NoError(t, err)
	ack, err := wire.DecodeRegisterAck(reply)
	require.NoError(t, err)
	assert.EqualValues(t, 42, ack.AgentID)

	<-done
}
