package domain

import (
	"testing"
	"time"

	"github.com/crowdvault/crowdvault/pkg/money"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	c := &Campaign{
		Target:          money.MustParse("10"),
		Deadline:        deadline,
		AmountCollected: money.MustParse("3"),
	}

	assert.Equal(t, StateActive, Classify(c, deadline.Add(-time.Hour)))
	assert.Equal(t, StateActive, Classify(c, deadline.Add(-time.Nanosecond)))

	// The deadline instant itself is already terminal.
	assert.Equal(t, StateFailed, Classify(c, deadline))
	assert.Equal(t, StateFailed, Classify(c, deadline.Add(time.Hour)))

	c.AmountCollected = money.MustParse("10")
	assert.Equal(t, StateSuccessful, Classify(c, deadline))

	c.AmountCollected = money.MustParse("11")
	assert.Equal(t, StateSuccessful, Classify(c, deadline.Add(365*24*time.Hour)))
}

func TestClassifyDeterministic(t *testing.T) {
	deadline := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &Campaign{
		Target:          money.MustParse("5"),
		Deadline:        deadline,
		AmountCollected: money.MustParse("5"),
	}
	now := deadline.Add(time.Minute)
	first := Classify(c, now)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify(c, now))
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StateActive.IsTerminal())
	assert.True(t, StateSuccessful.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
}
