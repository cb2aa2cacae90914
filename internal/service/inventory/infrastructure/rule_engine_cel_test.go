package infrastructure

import (
	"testing"

	"akwa/internal/service/inventory/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCelRuleEngineEvaluate(t *testing.T) {
	engine, err := NewCelRuleEngine()
	require.NoError(t, err)

	fact := domain.QuantityFact{
		ItemID: "item-1", ProfileID: "profile-1",
		Total: 100, Available: 5, Reserved: 95,
	}

	cases := []struct {
		expr string
		hit  bool
	}{
		{"available == 0", false},
		{"available * 100 < total * 10", true}, // 可用低于 10%
		{"reserved >= total", false},
		{"profileId == 'profile-1' && available < 10", true},
	}
	for _, tc := range cases {
		hit, err := engine.Evaluate(tc.expr, fact)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.hit, hit, tc.expr)
	}
}

func TestCelRuleEngineRejectsNonBool(t *testing.T) {
	engine, err := NewCelRuleEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate("available + reserved", domain.QuantityFact{})
	assert.Error(t, err)
}

func TestCelRuleEngineRejectsBadSyntax(t *testing.T) {
	engine, err := NewCelRuleEngine()
	require.NoError(t, err)

	_, err = engine.Evaluate("available ==", domain.QuantityFact{})
	assert.Error(t, err)
}
