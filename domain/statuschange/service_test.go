package statuschange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContainsStatus(t *testing.T) {
	assert.True(t, containsStatus([]string{"done", "failed"}, "done"))
	assert.False(t, containsStatus([]string{"done"}, "paused"))
	assert.False(t, containsStatus(nil, "done"))
}

func TestBackoffDelay_Increases(t *testing.T) {
	d0 := backoffDelay(0)
	d3 := backoffDelay(3)
	assert.Greater(t, d3, d0)
}

func TestBackoffDelay_CapsAtMax(t *testing.T) {
	d := backoffDelay(20)
	assert.LessOrEqual(t, d, 5*time.Minute+5*time.Minute/4) // allow for jitter headroom
}
