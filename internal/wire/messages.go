package wire

import (
	"encoding/binary"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

// ThreatPayload is the body of a TypeThreat message: an Agent reporting a
// detected threat up to Hive.
type ThreatPayload struct {
	Severity   domain.Severity
	ThreatType domain.ThreatType
	PID        uint32
	UID        uint32
	Signature  string // truncated to MaxSignatureLen on encode
}

// EncodeThreat packs t into a fixed-prefix + variable payload:
// severity:u8, pid:u32, uid:u32, threat_type_len:u8, threat_type,
// signature (remainder, truncated to MaxSignatureLen).
func EncodeThreat(t ThreatPayload) []byte {
	sig := t.Signature
	if len(sig) > MaxSignatureLen {
		sig = sig[:MaxSignatureLen]
	}
	threatType := string(t.ThreatType)

	buf := make([]byte, 10+len(threatType)+len(sig))
	buf[0] = byte(t.Severity)
	binary.LittleEndian.PutUint32(buf[1:5], t.PID)
	binary.LittleEndian.PutUint32(buf[5:9], t.UID)
	buf[9] = byte(len(threatType))
	copy(buf[10:10+len(threatType)], threatType)
	copy(buf[10+len(threatType):], sig)
	return buf
}

// DecodeThreat is EncodeThreat's inverse.
func DecodeThreat(payload []byte) (ThreatPayload, error) {
	if len(payload) < 10 {
		return ThreatPayload{}, shielderr.Wrap(shielderr.KindParseFailure, "wire.DecodeThreat",
			shielderr.ErrParseFailure)
	}
	ttLen := int(payload[9])
	if len(payload) < 10+ttLen {
		return ThreatPayload{}, shielderr.Wrap(shielderr.KindParseFailure, "wire.DecodeThreat",
			shielderr.ErrParseFailure)
	}

	return ThreatPayload{
		Severity:   domain.Severity(payload[0]),
		PID:        binary.LittleEndian.Uint32(payload[1:5]),
		UID:        binary.LittleEndian.Uint32(payload[5:9]),
		ThreatType: domain.ThreatType(payload[10 : 10+ttLen]),
		Signature:  string(payload[10+ttLen:]),
	}, nil
}

// RegisterPayload is the body of a TypeRegister message: an Agent's
// registration request, carrying the solution to the proof-of-work
// challenge Hive issued in a prior TypeChallenge message.
type RegisterPayload struct {
	Hostname string
	PubKey   [32]byte
	Nonce    uint64
	Hash     [32]byte
}

// EncodeRegister packs p as: pubkey[32], nonce:u64, hash[32],
// hostname (remainder).
func EncodeRegister(p RegisterPayload) []byte {
	buf := make([]byte, 72+len(p.Hostname))
	copy(buf[0:32], p.PubKey[:])
	binary.LittleEndian.PutUint64(buf[32:40], p.Nonce)
	copy(buf[40:72], p.Hash[:])
	copy(buf[72:], p.Hostname)
	return buf
}

// DecodeRegister is EncodeRegister's inverse.
func DecodeRegister(payload []byte) (RegisterPayload, error) {
	if len(payload) < 72 {
		return RegisterPayload{}, shielderr.Wrap(shielderr.KindParseFailure,
			"wire.DecodeRegister", shielderr.ErrParseFailure)
	}
	var p RegisterPayload
	copy(p.PubKey[:], payload[0:32])
	p.Nonce = binary.LittleEndian.Uint64(payload[32:40])
	copy(p.Hash[:], payload[40:72])
	p.Hostname = string(payload[72:])
	return p, nil
}

// ChallengePayload is the body of a TypeChallenge message: the
// proof-of-work puzzle Hive issues in response to a TypeChallengeRequest,
// which an Agent must solve before it may send TypeRegister.
type ChallengePayload struct {
	Challenge  [32]byte
	Difficulty uint32
	Expires    int64 // unix seconds
}

// EncodeChallenge packs p as: challenge[32], difficulty:u32, expires:i64.
func EncodeChallenge(p ChallengePayload) []byte {
	buf := make([]byte, 44)
	copy(buf[0:32], p.Challenge[:])
	binary.LittleEndian.PutUint32(buf[32:36], p.Difficulty)
	binary.LittleEndian.PutUint64(buf[36:44], uint64(p.Expires))
	return buf
}

// DecodeChallenge is EncodeChallenge's inverse.
func DecodeChallenge(payload []byte) (ChallengePayload, error) {
	if len(payload) < 44 {
		return ChallengePayload{}, shielderr.Wrap(shielderr.KindParseFailure,
			"wire.DecodeChallenge", shielderr.ErrParseFailure)
	}
	var p ChallengePayload
	copy(p.Challenge[:], payload[0:32])
	p.Difficulty = binary.LittleEndian.Uint32(payload[32:36])
	p.Expires = int64(binary.LittleEndian.Uint64(payload[36:44]))
	return p, nil
}

// RegisterAckPayload is the body of a TypeRegisterAck message: the
// agent_id Hive assigned the newly registered agent.
type RegisterAckPayload struct {
	AgentID uint64
}

func EncodeRegisterAck(p RegisterAckPayload) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, p.AgentID)
	return buf
}

func DecodeRegisterAck(payload []byte) (RegisterAckPayload, error) {
	if len(payload) < 8 {
		return RegisterAckPayload{}, shielderr.Wrap(shielderr.KindParseFailure,
			"wire.DecodeRegisterAck", shielderr.ErrParseFailure)
	}
	return RegisterAckPayload{AgentID: binary.LittleEndian.Uint64(payload[:8])}, nil
}

// SignatureRequestPayload is the body of a TypeSignatureRequest message:
// the agent pulls every signature update since LastSync.
type SignatureRequestPayload struct {
	LastSync uint64
}

func EncodeSignatureRequest(p SignatureRequestPayload) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, p.LastSync)
	return buf
}

func DecodeSignatureRequest(payload []byte) (SignatureRequestPayload, error) {
	if len(payload) < 8 {
		return SignatureRequestPayload{}, shielderr.Wrap(shielderr.KindParseFailure,
			"wire.DecodeSignatureRequest", shielderr.ErrParseFailure)
	}
	return SignatureRequestPayload{LastSync: binary.LittleEndian.Uint64(payload[:8])}, nil
}
