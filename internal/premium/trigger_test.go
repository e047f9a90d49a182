package premium

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alfanzaky/refledger/internal/domain"
)

func TestIsPremiumEncounter(t *testing.T) {
	cfg := domain.GlobalPremiumConfig{Enabled: true, Position: 27, Amount: decimal.NewFromInt(10000)}

	assert.False(t, IsPremiumEncounter(cfg, 26))
	assert.True(t, IsPremiumEncounter(cfg, 27))
	assert.False(t, IsPremiumEncounter(cfg, 28))

	cfg.Enabled = false
	assert.False(t, IsPremiumEncounter(cfg, 27))

	assert.False(t, IsPremiumEncounter(domain.GlobalPremiumConfig{Enabled: true}, 0))
}

func TestResolve_AssignmentWins(t *testing.T) {
	cfg := &domain.GlobalPremiumConfig{Enabled: true, Position: 5, Amount: decimal.NewFromInt(100)}
	assignment := &domain.PremiumAssignment{ID: "as-1", Position: 5, Amount: decimal.NewFromInt(900)}

	enc := Resolve(cfg, assignment, 5)
	assert.True(t, enc.Premium)
	assert.Equal(t, SourceAssignment, enc.Source)
	assert.Equal(t, "as-1", enc.AssignmentID)
	assert.True(t, enc.Amount.Equal(decimal.NewFromInt(900)))
}

func TestResolve_FallsBackToGlobal(t *testing.T) {
	cfg := &domain.GlobalPremiumConfig{Enabled: true, Position: 5, Amount: decimal.NewFromInt(100)}
	consumed := &domain.PremiumAssignment{ID: "as-1", Position: 5, Amount: decimal.NewFromInt(900), Consumed: true}

	enc := Resolve(cfg, consumed, 5)
	assert.Equal(t, SourceGlobal, enc.Source)
	assert.True(t, enc.Amount.Equal(decimal.NewFromInt(100)))

	assert.False(t, Resolve(cfg, nil, 4).Premium)
	assert.False(t, Resolve(nil, nil, 5).Premium)
}

func TestResolve_ReadsConfigAtCallTime(t *testing.T) {
	cfg := &domain.GlobalPremiumConfig{Enabled: true, Position: 3, Amount: decimal.NewFromInt(100)}
	first := Resolve(cfg, nil, 3)

	cfg.Amount = decimal.NewFromInt(500)
	cfg.Position = 4

	assert.True(t, first.Amount.Equal(decimal.NewFromInt(100)))
	assert.False(t, Resolve(cfg, nil, 3).Premium)
	assert.True(t, Resolve(cfg, nil, 4).Amount.Equal(decimal.NewFromInt(500)))
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(false, 0, decimal.Zero))
	assert.NoError(t, ValidateConfig(true, 27, decimal.NewFromInt(10000)))
	assert.ErrorIs(t, ValidateConfig(true, 0, decimal.NewFromInt(10)), domain.ErrInvalidPremiumConfig)
	assert.ErrorIs(t, ValidateConfig(true, 3, decimal.Zero), domain.ErrInvalidPremiumConfig)
	assert.ErrorIs(t, ValidateConfig(true, 3, decimal.RequireFromString("1000.005")), domain.ErrInvalidPremiumConfig)
}

func TestValidateAssignment(t *testing.T) {
	assert.NoError(t, ValidateAssignment(decimal.NewFromInt(10), 6, 5))
	assert.ErrorIs(t, ValidateAssignment(decimal.NewFromInt(10), 5, 5), domain.ErrInvalidPremiumConfig)
	assert.ErrorIs(t, ValidateAssignment(decimal.NewFromInt(-1), 9, 5), domain.ErrInvalidPremiumConfig)
	assert.ErrorIs(t, ValidateAssignment(decimal.RequireFromString("0.001"), 9, 5), domain.ErrInvalidPremiumConfig)
}
