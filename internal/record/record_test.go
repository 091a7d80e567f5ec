package record

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayushhh101/challan-agent/internal/rules"
)

func TestComputeAmount_FareFloor(t *testing.T) {
	table := ruleTable(t)

	fare := decimal.NewFromInt(90)
	d := Draft{Category: "Travelling without ticket", FareAmount: &fare}
	require.NoError(t, ComputeAmount(table, &d))
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(250)), "got %s", d.Amount)

	fare = decimal.NewFromInt(900)
	d = Draft{Category: "Travelling without ticket", FareAmount: &fare}
	require.NoError(t, ComputeAmount(table, &d))
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(900)))
}

func TestComputeAmount_RepeatTier(t *testing.T) {
	table := ruleTable(t)

	count := 1
	d := Draft{Category: "Repeat nuisance and littering", PriorOffenses: &count}
	require.NoError(t, ComputeAmount(table, &d))
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(100)))

	count = 2
	require.NoError(t, ComputeAmount(table, &d))
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(250)))
}

func TestComputeAmount_Fixed_OverwritesPrevious(t *testing.T) {
	table := ruleTable(t)

	d := Draft{Category: "Alarm chain pulling", Amount: decimal.NewFromInt(9999)}
	require.NoError(t, ComputeAmount(table, &d))
	assert.True(t, d.Amount.Equal(decimal.NewFromInt(500)))
}

func TestComputeAmount_Errors(t *testing.T) {
	table := ruleTable(t)

	d := Draft{Category: "No such offence"}
	assert.ErrorIs(t, ComputeAmount(table, &d), rules.ErrUnknownCategory)

	d = Draft{Category: "Travelling without ticket"} // fare missing
	assert.ErrorIs(t, ComputeAmount(table, &d), rules.ErrMissingInput)
}

func TestIsDuplicate(t *testing.T) {
	a := Draft{TrainNumber: "12345", PassengerName: "A Kumar", Category: "Travelling without ticket"}
	b := a

	assert.True(t, IsDuplicate(a, b))

	// Any differing key field breaks the match.
	c := a
	c.TrainNumber = "54321"
	assert.False(t, IsDuplicate(c, a))

	c = a
	c.PassengerName = "B Kumar"
	assert.False(t, IsDuplicate(c, a))

	c = a
	c.Category = "Smoking in train"
	assert.False(t, IsDuplicate(c, a))

	// Non-key fields are ignored: same intent even if details differ.
	c = a
	c.Location = "Another platform"
	c.CoachNumber = "B-2"
	assert.True(t, IsDuplicate(c, a))
}
