package run

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/agentcp/controlplane/pkg/apperror"
)

// IDPattern is the run id wire contract from the wire contract
var IDPattern = regexp.MustCompile(`^[0-9A-Za-z\-_.]{4,128}$`)

// ValidateID rejects ids not matching IDPattern with a 400.
func ValidateID(id string) error {
	if !IDPattern.MatchString(id) {
		return apperror.ErrBadRequest.WithMessage("run id must match ^[0-9A-Za-z-_.]{4,128}$")
	}
	return nil
}

// GenerateID produces a run id when the caller doesn't supply one.
func GenerateID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "run_" + hex.EncodeToString(buf)
}

// NewMessageID returns a lexicographically orderable, time-prefixed message
// id: readers can paginate with after=<id> and totally order messages
// within a run.
func NewMessageID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%020d_%s", time.Now().UnixNano(), hex.EncodeToString(buf))
}
