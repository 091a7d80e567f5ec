package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AllCategoriesPresent(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	want := []string{
		"Travelling without ticket",
		"Repeat nuisance and littering",
		"Alarm chain pulling",
		"Smoking in train",
		"Travelling on roof",
		"Unauthorised hawking",
		"Bill pasting or defacement",
	}
	for _, category := range want {
		r, ok := table.Lookup(category)
		require.True(t, ok, "category %q missing", category)
		assert.Equal(t, category, r.Category)
		assert.NotEmpty(t, r.Section)
		assert.NotEmpty(t, r.Description)
	}
}

func TestLoad_DeclarationOrderPreserved(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	all := table.Rules()
	require.NotEmpty(t, all)
	assert.Equal(t, "Travelling without ticket", all[0].Category)
	assert.Equal(t, "Repeat nuisance and littering", all[1].Category)

	// Returned slice is a copy; mutating it must not affect the table.
	all[0].Category = "mutated"
	again := table.Rules()
	assert.Equal(t, "Travelling without ticket", again[0].Category)
}

func TestAmount_FixedIsConstant(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		amt, err := table.Amount("Alarm chain pulling", decimal.Zero)
		require.NoError(t, err)
		assert.True(t, amt.Equal(decimal.NewFromInt(500)), "got %s", amt)
	}

	// Auxiliary input is ignored for fixed rules.
	amt, err := table.Amount("Smoking in train", decimal.NewFromInt(9999))
	require.NoError(t, err)
	assert.True(t, amt.Equal(decimal.NewFromInt(100)))
}

func TestAmount_FareFloorLaw(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	floor := decimal.NewFromInt(250)
	fares := []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromInt(1),
		decimal.NewFromFloat(249.50),
		floor,
		decimal.NewFromFloat(250.25),
		decimal.NewFromInt(1800),
	}
	for _, fare := range fares {
		amt, err := table.Amount("Travelling without ticket", fare)
		require.NoError(t, err, "fare=%s", fare)

		want := floor
		if fare.GreaterThan(floor) {
			want = fare
		}
		assert.True(t, amt.Equal(want), "fare=%s got=%s want=%s", fare, amt, want)
	}
}

func TestAmount_FareFloor_NegativeFareRejected(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	_, err = table.Amount("Travelling without ticket", decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestAmount_RepeatTier(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	amt, err := table.Amount("Repeat nuisance and littering", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, amt.Equal(decimal.NewFromInt(100)), "first offense: got %s", amt)

	amt, err = table.Amount("Repeat nuisance and littering", decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, amt.Equal(decimal.NewFromInt(250)), "second offense: got %s", amt)

	// Monotonically non-decreasing in the count.
	prev := decimal.Zero
	for count := int64(1); count <= 5; count++ {
		amt, err := table.Amount("Repeat nuisance and littering", decimal.NewFromInt(count))
		require.NoError(t, err)
		assert.True(t, amt.GreaterThanOrEqual(prev), "count=%d", count)
		prev = amt
	}
}

func TestAmount_RepeatTier_InvalidCount(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	for _, aux := range []decimal.Decimal{
		decimal.Zero,
		decimal.NewFromInt(-1),
		decimal.NewFromFloat(1.5),
	} {
		_, err := table.Amount("Repeat nuisance and littering", aux)
		assert.ErrorIs(t, err, ErrMissingInput, "aux=%s", aux)
	}
}

func TestAmount_UnknownCategory(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	_, err = table.Amount("Spitting on platform", decimal.Zero)
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, ok := table.Lookup("")
	assert.False(t, ok)
}

func TestRequiresInput(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	withInput := map[string]bool{
		"Travelling without ticket":     true,
		"Repeat nuisance and littering": true,
		"Alarm chain pulling":           false,
		"Unauthorised hawking":          false,
	}
	for category, want := range withInput {
		r, ok := table.Lookup(category)
		require.True(t, ok)
		assert.Equal(t, want, r.RequiresInput(), "category %q", category)
	}
}

func TestAmount_AlwaysStrictlyPositive(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	for _, r := range table.Rules() {
		aux := decimal.Zero
		if r.Kind == KindRepeatTier {
			aux = decimal.NewFromInt(1)
		}
		amt, err := r.Amount(aux)
		require.NoError(t, err, "category %q", r.Category)
		assert.True(t, amt.IsPositive(), "category %q amount %s", r.Category, amt)
	}
}
