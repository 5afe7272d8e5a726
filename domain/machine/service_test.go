package machine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestService_ThrottleWindow_DefaultsTo60Seconds(t *testing.T) {
	svc := &Service{throttle: LivenessWindow, liveness: LivenessWindow}
	assert.Equal(t, 60*time.Second, svc.throttle)
	assert.Equal(t, 60*time.Second, svc.liveness)
}
