// Package wire implements the Agent<->Hive binary protocol: a fixed
// 32-byte header followed by a variable-length payload, encoded/decoded
// with encoding/binary exactly as internal/memory's persistence format
// is, and checksummed with CRC32 over the payload.
package wire

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/sentinel/edr/internal/shielderr"
)

const (
	// ProtocolVersion is the only version this implementation speaks.
	ProtocolVersion uint8 = 1

	// HeaderSize is the fixed wire size of Header, in bytes.
	HeaderSize = 32

	// MaxPayloadSize bounds a single message's payload.
	MaxPayloadSize = 4096

	// HeartbeatInterval is the Agent's default push cadence.
	HeartbeatInterval = 60 // seconds

	// MaxSignatureLen bounds a THREAT message's embedded signature field.
	MaxSignatureLen = 256
)

// Type identifies a message's payload shape and purpose.
type Type uint8

const (
	TypeRegister Type = iota + 1
	TypeRegisterAck
	TypeHeartbeat
	TypeThreat
	TypeStats
	TypeSignatureRequest
	TypeSignature
	TypeChallengeRequest
	TypeChallenge
)

// Header is the fixed 32-byte envelope prefixing every message.
type Header struct {
	Version   uint8
	Type      Type
	Flags     uint16
	Length    uint32
	Timestamp uint64
	AgentID   uint64
	Sequence  uint32
	Checksum  uint32
}

// Encode writes h followed by payload into a single []byte, computing
// h.Checksum and h.Length from payload before encoding. The returned slice
// is HeaderSize+len(payload) bytes.
func Encode(h Header, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, shielderr.Wrap(shielderr.KindInvalidInput, "wire.Encode",
			shielderr.ErrInvalidInput)
	}

	h.Length = uint32(len(payload))
	h.Checksum = crc32.ChecksumIEEE(payload)

	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = h.Version
	buf[1] = byte(h.Type)
	binary.LittleEndian.PutUint16(buf[2:4], h.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], h.Length)
	binary.LittleEndian.PutUint64(buf[8:16], h.Timestamp)
	binary.LittleEndian.PutUint64(buf[16:24], h.AgentID)
	binary.LittleEndian.PutUint32(buf[24:28], h.Sequence)
	binary.LittleEndian.PutUint32(buf[28:32], h.Checksum)
	copy(buf[HeaderSize:], payload)

	return buf, nil
}

// Decode parses a header and its payload from buf, verifying the payload
// checksum. It returns a parse-failure error on a short buffer and an
// invalid-input error on checksum mismatch.
func Decode(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, shielderr.Wrap(shielderr.KindParseFailure, "wire.Decode",
			shielderr.ErrParseFailure)
	}

	h := Header{
		Version:   buf[0],
		Type:      Type(buf[1]),
		Flags:     binary.LittleEndian.Uint16(buf[2:4]),
		Length:    binary.LittleEndian.Uint32(buf[4:8]),
		Timestamp: binary.LittleEndian.Uint64(buf[8:16]),
		AgentID:   binary.LittleEndian.Uint64(buf[16:24]),
		Sequence:  binary.LittleEndian.Uint32(buf[24:28]),
		Checksum:  binary.LittleEndian.Uint32(buf[28:32]),
	}

	want := HeaderSize + int(h.Length)
	if len(buf) < want {
		return Header{}, nil, shielderr.Wrap(shielderr.KindParseFailure, "wire.Decode",
			shielderr.ErrParseFailure)
	}

	payload := buf[HeaderSize:want]
	if crc32.ChecksumIEEE(payload) != h.Checksum {
		return Header{}, nil, shielderr.Wrap(shielderr.KindInvalidInput, "wire.Decode",
			shielderr.ErrInvalidInput)
	}

	return h, payload, nil
}
