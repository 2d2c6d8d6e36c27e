package acl

import (
	"testing"

	"github.com/sentinel/edr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstMatchWins(t *testing.T) {
	e := NewEngine(64)
	require.NoError(t, e.Put(domain.ACL{
		Number: 1,
		Rules: []domain.Rule{
			{Sequence: 10, Action: domain.ActionBlock, Direction: domain.DirectionAny, ZoneType: domain.ZoneTypeAny,
				Pattern: &domain.Pattern{Bytes: []byte("evil"), Kind: domain.PatternContains}},
			{Sequence: 20, Action: domain.ActionAllow, Direction: domain.DirectionAny, ZoneType: domain.ZoneTypeAny},
		},
		DefaultAction: domain.ActionAllow,
	}))

	v, err := e.Evaluate(1, domain.DirectionInput, domain.ZoneTypeLLM, []byte("this contains evil intent"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBlock, v.Action)
	assert.EqualValues(t, 10, v.RuleSeq)

	v2, err := e.Evaluate(1, domain.DirectionInput, domain.ZoneTypeLLM, []byte("benign"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAllow, v2.Action)
	assert.EqualValues(t, 20, v2.RuleSeq)
}

func TestNoMatchUsesDefaultAction(t *testing.T) {
	e := NewEngine(64)
	require.NoError(t, e.Put(domain.ACL{
		Number:        2,
		Rules:         []domain.Rule{{Sequence: 1, Action: domain.ActionBlock, Direction: domain.DirectionOutput, ZoneType: domain.ZoneTypeAny}},
		DefaultAction: domain.ActionAllow,
	}))

	v, err := e.Evaluate(2, domain.DirectionInput, domain.ZoneTypeAny, []byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionAllow, v.Action)
	assert.EqualValues(t, 0, v.RuleSeq)
}

func TestDuplicateSequenceRejected(t *testing.T) {
	e := NewEngine(64)
	err := e.Put(domain.ACL{
		Number: 3,
		Rules: []domain.Rule{
			{Sequence: 1, Action: domain.ActionLog},
			{Sequence: 1, Action: domain.ActionBlock},
		},
	})
	assert.Error(t, err)
}

func TestDuplicateACLNumberRejected(t *testing.T) {
	e := NewEngine(64)
	require.NoError(t, e.Put(domain.ACL{Number: 5}))
	err := e.Put(domain.ACL{Number: 5})
	assert.Error(t, err)
}

func TestRulesEvaluatedInAscendingSequenceRegardlessOfInputOrder(t *testing.T) {
	e := NewEngine(64)
	require.NoError(t, e.Put(domain.ACL{
		Number: 6,
		Rules: []domain.Rule{
			{Sequence: 30, Action: domain.ActionAllow},
			{Sequence: 5, Action: domain.ActionBlock},
		},
		DefaultAction: domain.ActionAllow,
	}))
	v, err := e.Evaluate(6, domain.DirectionAny, domain.ZoneTypeAny, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBlock, v.Action)
}
