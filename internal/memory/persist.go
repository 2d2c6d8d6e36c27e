package memory

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sentinel/edr/internal/shielderr"
)

const (
	fileMagic   uint32 = 0x494D454D
	fileVersion uint32 = 2
)

// Save writes m's contents to path atomically: write to a sibling temp file,
// flush, fsync, then rename over path. A failed save leaves the prior file
// (if any) untouched.
func (m *Memory) Save(path string) error {
	entries := m.Snapshot()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".memory-*.tmp")
	if err != nil {
		return shielderr.Wrap(shielderr.KindIoFailure, "memory.Save", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	w := bufio.NewWriter(tmp)
	if err := writeHeader(w, uint32(len(entries))); err != nil {
		tmp.Close()
		return shielderr.Wrap(shielderr.KindIoFailure, "memory.Save", err)
	}
	for _, e := range entries {
		if err := writeEntry(w, e); err != nil {
			tmp.Close()
			return shielderr.Wrap(shielderr.KindIoFailure, "memory.Save", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return shielderr.Wrap(shielderr.KindIoFailure, "memory.Save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return shielderr.Wrap(shielderr.KindIoFailure, "memory.Save", err)
	}
	if err := tmp.Close(); err != nil {
		return shielderr.Wrap(shielderr.KindIoFailure, "memory.Save", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return shielderr.Wrap(shielderr.KindIoFailure, "memory.Save", err)
	}
	return nil
}

// Load reads path and replaces m's contents. Magic/version mismatch or
// truncation rejects the load and leaves m untouched.
func (m *Memory) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return shielderr.Wrap(shielderr.KindIoFailure, "memory.Load", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	count, err := readHeader(r)
	if err != nil {
		return shielderr.Wrap(shielderr.KindParseFailure, "memory.Load", err)
	}

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := readEntry(r)
		if err != nil {
			return shielderr.Wrap(shielderr.KindParseFailure, "memory.Load", err)
		}
		entries = append(entries, e)
	}

	m.Restore(entries)
	return nil
}

func writeHeader(w io.Writer, count uint32) error {
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], fileMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], fileVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], count)
	_, err := w.Write(hdr[:])
	return err
}

func readHeader(r io.Reader) (uint32, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, err
	}
	magic := binary.LittleEndian.Uint32(hdr[0:4])
	version := binary.LittleEndian.Uint32(hdr[4:8])
	if magic != fileMagic {
		return 0, fmt.Errorf("bad magic: %#x", magic)
	}
	if version != fileVersion {
		return 0, fmt.Errorf("unsupported version: %d", version)
	}
	return binary.LittleEndian.Uint32(hdr[8:12]), nil
}

// entryWireSize is 32 (hash) + 1 (severity) + 1 (type) + 8 (first_seen) +
// 8 (last_seen) + 4 (hit_count) + 1 (active) = 55 bytes.
const entryWireSize = 32 + 1 + 1 + 8 + 8 + 4 + 1

func writeEntry(w io.Writer, e Entry) error {
	var buf [entryWireSize]byte
	copy(buf[0:32], e.Hash[:])
	buf[32] = byte(e.Severity)
	buf[33] = byte(threatTypeCode(e.ThreatType))
	binary.LittleEndian.PutUint64(buf[34:42], uint64(e.FirstSeen))
	binary.LittleEndian.PutUint64(buf[42:50], uint64(e.LastSeen))
	binary.LittleEndian.PutUint32(buf[50:54], e.HitCount)
	if e.Active {
		buf[54] = 1
	}
	_, err := w.Write(buf[:])
	return err
}

func readEntry(r io.Reader) (Entry, error) {
	var buf [entryWireSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Entry{}, err
	}
	var e Entry
	copy(e.Hash[:], buf[0:32])
	e.Severity = severityFromByte(buf[32])
	e.ThreatType = threatTypeFromCode(buf[33])
	e.FirstSeen = int64(binary.LittleEndian.Uint64(buf[34:42]))
	e.LastSeen = int64(binary.LittleEndian.Uint64(buf[42:50]))
	e.HitCount = binary.LittleEndian.Uint32(buf[50:54])
	e.Active = buf[54] != 0
	return e, nil
}
