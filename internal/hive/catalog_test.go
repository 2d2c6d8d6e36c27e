package hive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel/edr/internal/domain"
)

func samplePatterns() []domain.Pattern {
	return []domain.Pattern{
		{ID: 1, Bytes: []byte("ignore previous instructions"), Kind: domain.PatternContains, Severity: domain.SeverityHigh},
		{ID: 2, Bytes: []byte("rm -rf /"), Kind: domain.PatternContains, Severity: domain.SeverityCritical},
	}
}

func TestCatalogCheckUpdateAheadOfCurrent(t *testing.T) {
	c := NewCatalog(samplePatterns())
	assert.EqualValues(t, 1, c.Version())
	assert.Equal(t, 2, c.Count())

	info, available, err := c.CheckUpdate(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, available)
	assert.EqualValues(t, 1, info.Version)
	assert.Equal(t, 2, info.PatternCount)
	assert.NotEmpty(t, info.ChecksumHex)
}

func TestCatalogCheckUpdateCallerCurrent(t *testing.T) {
	c := NewCatalog(samplePatterns())
	_, available, err := c.CheckUpdate(context.Background(), c.Version())
	require.NoError(t, err)
	assert.False(t, available)
}

func TestCatalogPublishBumpsVersion(t *testing.T) {
	c := NewCatalog(samplePatterns())
	newVersion := c.Publish([]domain.Pattern{{ID: 3, Bytes: []byte("sudo"), Kind: domain.PatternContains}})
	assert.EqualValues(t, 2, newVersion)
	assert.Equal(t, 1, c.Count())

	_, available, err := c.CheckUpdate(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, available)
}

func TestCatalogDownloadRoundTrips(t *testing.T) {
	c := NewCatalog(samplePatterns())
	data, err := c.Download(context.Background(), c.Version())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
