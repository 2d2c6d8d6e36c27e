package hive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFleetRegisterAssignsIncrementingIDs(t *testing.T) {
	f := NewFleet(nil)
	a := f.Register("host-a", [32]byte{1})
	b := f.Register("host-b", [32]byte{2})

	assert.NotEqual(t, a.AgentID, b.AgentID)
	assert.Equal(t, "host-a", a.Hostname)
	assert.Equal(t, AgentPending, a.Status)
	assert.Equal(t, TrustInitial, a.Trust)
}

func TestFleetHeartbeatUpdatesRecord(t *testing.T) {
	f := NewFleet(nil)
	rec := f.Register("host-a", [32]byte{1})

	f.Heartbeat(rec.AgentID, 5)

	got, ok := f.Get(rec.AgentID)
	require.True(t, ok)
	assert.EqualValues(t, 5, got.LastSeqNumber)
	assert.False(t, got.LastHeartbeatAt.IsZero())
}

func TestFleetRecordThreatIncrements(t *testing.T) {
	f := NewFleet(nil)
	rec := f.Register("host-a", [32]byte{1})

	f.RecordThreat(rec.AgentID)
	f.RecordThreat(rec.AgentID)

	got, ok := f.Get(rec.AgentID)
	require.True(t, ok)
	assert.EqualValues(t, 2, got.ThreatsReported)
}

func TestFleetStaleFiltersByHeartbeatAge(t *testing.T) {
	f := NewFleet(nil)
	rec := f.Register("host-a", [32]byte{1})
	f.Heartbeat(rec.AgentID, 1)

	stale := f.Stale(time.Hour)
	assert.Empty(t, stale)

	stale = f.Stale(-time.Second)
	require.Len(t, stale, 1)
	assert.Equal(t, rec.AgentID, stale[0].AgentID)
}

func TestFleetGetUnknownAgent(t *testing.T) {
	f := NewFleet(nil)
	_, ok := f.Get(999)
	assert.False(t, ok)
}

func TestFleetVouchingPromotesToActive(t *testing.T) {
	f := NewFleet(nil)
	target := f.Register("new-agent", [32]byte{1})

	var vouchers []uint64
	for i := 0; i < VouchesRequired; i++ {
		v := f.Register("voucher", [32]byte{byte(i + 2)})
		rec, _ := f.Get(v.AgentID)
		_ = rec
		vouchers = append(vouchers, v.AgentID)
		// promote the voucher itself to Active/trusted so it can vouch
		f.mu.Lock()
		f.agents[v.AgentID].Status = AgentActive
		f.agents[v.AgentID].Trust = TrustMax
		f.mu.Unlock()
	}

	var count int
	var err error
	for _, v := range vouchers {
		count, err = f.GrantVouch(v, target.AgentID)
		require.NoError(t, err)
	}

	assert.Equal(t, VouchesRequired, count)
	got, ok := f.Get(target.AgentID)
	require.True(t, ok)
	assert.Equal(t, AgentActive, got.Status)
}

func TestFleetGrantVouchRejectsUntrustedVoucher(t *testing.T) {
	f := NewFleet(nil)
	voucher := f.Register("pending-voucher", [32]byte{1})
	target := f.Register("target", [32]byte{2})

	_, err := f.GrantVouch(voucher.AgentID, target.AgentID)
	assert.Error(t, err)
}

func TestFleetReportAgentMarksSuspect(t *testing.T) {
	f := NewFleet(nil)
	reporter := f.Register("reporter", [32]byte{1})
	f.mu.Lock()
	f.agents[reporter.AgentID].Status = AgentActive
	f.agents[reporter.AgentID].Trust = TrustMax
	f.mu.Unlock()
	target := f.Register("target", [32]byte{2})

	for i := 0; i < 5; i++ {
		require.NoError(t, f.ReportAgent(reporter.AgentID, target.AgentID, "suspicious behavior"))
	}

	got, ok := f.Get(target.AgentID)
	require.True(t, ok)
	assert.Equal(t, AgentSuspect, got.Status)
}

func TestFleetBlacklistZeroesTrust(t *testing.T) {
	f := NewFleet(nil)
	rec := f.Register("host-a", [32]byte{1})

	f.Blacklist(rec.AgentID)

	assert.True(t, f.IsBlacklisted(rec.AgentID))
	got, _ := f.Get(rec.AgentID)
	assert.Equal(t, AgentBlacklisted, got.Status)
	assert.Zero(t, got.Trust)
}

func TestFleetCanVoteRequiresActiveAndTrust(t *testing.T) {
	f := NewFleet(nil)
	rec := f.Register("host-a", [32]byte{1})
	assert.False(t, f.CanVote(rec.AgentID))

	f.mu.Lock()
	f.agents[rec.AgentID].Status = AgentActive
	f.agents[rec.AgentID].Trust = ConsensusThreshold
	f.mu.Unlock()
	assert.True(t, f.CanVote(rec.AgentID))
}
