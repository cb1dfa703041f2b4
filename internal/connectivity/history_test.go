package connectivity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryRing(t *testing.T) {
	h := newHistory(3)
	assert.Empty(t, h.latest(0))

	for i := int64(1); i <= 5; i++ {
		h.add(CheckRecord{ResponseTimeMs: i})
	}

	all := h.latest(0)
	if assert.Len(t, all, 3) {
		assert.Equal(t, int64(5), all[0].ResponseTimeMs)
		assert.Equal(t, int64(4), all[1].ResponseTimeMs)
		assert.Equal(t, int64(3), all[2].ResponseTimeMs)
	}

	two := h.latest(2)
	assert.Len(t, two, 2)
	assert.Equal(t, int64(5), two[0].ResponseTimeMs)

	assert.Len(t, h.latest(10), 3)
}
