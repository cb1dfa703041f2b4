package connectivity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	for _, s := range []string{"online", "offline", "visibilitychange", "focus"} {
		ev, err := ParseEvent(s)
		require.NoError(t, err)
		assert.Equal(t, Event(s), ev)
	}

	_, err := ParseEvent("blur")
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestOptionsNormalized(t *testing.T) {
	o := Options{CheckInterval: -1, Timeout: 0, RecheckDebounce: -5, OnlineSettleDelay: -1}.normalized()
	assert.Zero(t, o.CheckInterval)
	assert.Equal(t, DefaultOptions().Timeout, o.Timeout)
	assert.Zero(t, o.RecheckDebounce)
	assert.Zero(t, o.OnlineSettleDelay)
	assert.Equal(t, 100, o.HistorySize)
}
