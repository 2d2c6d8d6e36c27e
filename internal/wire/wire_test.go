package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel/edr/internal/domain"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		Version:   ProtocolVersion,
		Type:      TypeHeartbeat,
		Timestamp: 1700000000,
		AgentID:   42,
		Sequence:  7,
	}
	payload := []byte("hello hive")

	buf, err := Encode(h, payload)
	require.NoError(t, err)

	gotH, gotPayload, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, h.AgentID, gotH.AgentID)
	assert.Equal(t, h.Sequence, gotH.Sequence)
	assert.Equal(t, uint32(len(payload)), gotH.Length)
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(Header{}, make([]byte, MaxPayloadSize+1))
	assert.Error(t, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, _, err := Decode(make([]byte, HeaderSize-1))
	assert.Error(t, err)
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	buf, err := Encode(Header{Version: ProtocolVersion, Type: TypeHeartbeat}, []byte("payload"))
	require.NoError(t, err)

	buf[len(buf)-1] ^= 0xFF // corrupt last payload byte

	_, _, err = Decode(buf)
	assert.Error(t, err)
}

func TestThreatPayloadRoundTrip(t *testing.T) {
	tp := ThreatPayload{
		Severity:   domain.SeverityCritical,
		ThreatType: domain.ThreatTypeJailbreak,
		PID:        1234,
		UID:        1000,
		Signature:  "ignore previous instructions",
	}

	encoded := EncodeThreat(tp)
	decoded, err := DecodeThreat(encoded)
	require.NoError(t, err)

	assert.Equal(t, tp.Severity, decoded.Severity)
	assert.Equal(t, tp.ThreatType, decoded.ThreatType)
	assert.Equal(t, tp.PID, decoded.PID)
	assert.Equal(t, tp.UID, decoded.UID)
	assert.Equal(t, tp.Signature, decoded.Signature)
}

func TestThreatSignatureTruncatedAtMax(t *testing.T) {
	long := make([]byte, MaxSignatureLen+100)
	for i := range long {
		long[i] = 'a'
	}
	tp := ThreatPayload{ThreatType: domain.ThreatTypeMalware, Signature: string(long)}

	decoded, err := DecodeThreat(EncodeThreat(tp))
	require.NoError(t, err)
	assert.Len(t, decoded.Signature, MaxSignatureLen)
}

func TestRegisterAckRoundTrip(t *testing.T) {
	encoded := EncodeRegisterAck(RegisterAckPayload{AgentID: 99})
	decoded, err := DecodeRegisterAck(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), decoded.AgentID)
}

func TestSignatureRequestRoundTrip(t *testing.T) {
	encoded := EncodeSignatureRequest(SignatureRequestPayload{LastSync: 555})
	decoded, err := DecodeSignatureRequest(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint64(555), decoded.LastSync)
}
