// Sybil defense: proof-of-work gated registration plus a vouch/trust/report
// lifecycle for agents once registered. Grounded on
// original_source/immune/hive/src/sybil_defense.c and its header
// (PoW puzzle/solution shape, trust constants, vouch/report/blacklist
// state machine); the stub FNV-1a hash that source uses "for demo" is
// replaced with crypto/sha256, and the mutex-guarded fixed-size C array
// is replaced with the same sync.RWMutex-guarded map Fleet already uses.
package hive

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"time"
)

const (
	// SybilPoWDifficulty is the number of leading zero bits a
	// registration puzzle solution must have.
	SybilPoWDifficulty = 20

	// SybilPuzzleTTL bounds how long a puzzle may be solved after issue.
	SybilPuzzleTTL = 5 * time.Minute

	// VouchesRequired is how many distinct active-agent vouches move a
	// pending agent to Active.
	VouchesRequired = 3

	// TrustInitial is the trust score assigned at registration.
	TrustInitial = 0.3

	// TrustMax caps a trust score.
	TrustMax = 1.0

	// TrustDecayRate is the fractional pull back toward TrustInitial,
	// applied per day of age by ApplyDecay.
	TrustDecayRate = 0.01

	// VouchWeight scales how much of a voucher's own trust a vouch
	// transfers to its target.
	VouchWeight = 0.1

	// ConsensusThreshold is the minimum trust score CanVote requires.
	ConsensusThreshold = 0.5
)

// AgentStatus is an agent's position in the Sybil-defense lifecycle.
type AgentStatus int

const (
	AgentPending AgentStatus = iota
	AgentActive
	AgentSuspect
	AgentBlacklisted
)

func (s AgentStatus) String() string {
	switch s {
	case AgentActive:
		return "active"
	case AgentSuspect:
		return "suspect"
	case AgentBlacklisted:
		return "blacklisted"
	default:
		return "pending"
	}
}

// Puzzle is a proof-of-work challenge issued to a connecting agent before
// it may register. The agent must find a Nonce whose sha256(Challenge ||
// Nonce) has at least Difficulty leading zero bits, before Expires.
type Puzzle struct {
	Challenge  [32]byte
	Difficulty uint32
	Expires    time.Time
}

// NewPuzzle generates a fresh Puzzle at the given difficulty.
func NewPuzzle(difficulty uint32) (*Puzzle, error) {
	p := &Puzzle{Difficulty: difficulty, Expires: time.Now().Add(SybilPuzzleTTL)}
	if _, err := rand.Read(p.Challenge[:]); err != nil {
		return nil, err
	}
	return p, nil
}

// SolvePoW brute-forces a nonce satisfying puzzle, for use by an Agent
// client. It gives up once puzzle has expired.
func SolvePoW(puzzle *Puzzle) (uint64, [32]byte, bool) {
	var nonce uint64
	for time.Now().Before(puzzle.Expires) {
		hash := hashChallenge(puzzle.Challenge, nonce)
		if leadingZeroBits(hash) >= int(puzzle.Difficulty) {
			return nonce, hash, true
		}
		nonce++
	}
	return 0, [32]byte{}, false
}

// VerifyPoW reports whether nonce/hash is a valid solution to puzzle that
// has not yet expired.
func VerifyPoW(puzzle *Puzzle, nonce uint64, hash [32]byte) bool {
	if time.Now().After(puzzle.Expires) {
		return false
	}
	if hashChallenge(puzzle.Challenge, nonce) != hash {
		return false
	}
	return leadingZeroBits(hash) >= int(puzzle.Difficulty)
}

func hashChallenge(challenge [32]byte, nonce uint64) [32]byte {
	var buf [40]byte
	copy(buf[:32], challenge[:])
	binary.LittleEndian.PutUint64(buf[32:], nonce)
	return sha256.Sum256(buf[:])
}

func leadingZeroBits(hash [32]byte) int {
	zeros := 0
	for _, b := range hash {
		if b == 0 {
			zeros += 8
			continue
		}
		for b&0x80 == 0 {
			zeros++
			b <<= 1
		}
		break
	}
	return zeros
}
