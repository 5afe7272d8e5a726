package memo

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{}))
}

func TestPut_RejectsMissingKey(t *testing.T) {
	s := &Service{log: discardLogger()}
	_, err := s.Put(nil, "c1", "", json.RawMessage(`1`), "")
	assert.Error(t, err)
}

func TestPut_RejectsUnknownOnConflict(t *testing.T) {
	s := &Service{log: discardLogger()}
	_, err := s.Put(nil, "c1", "k", json.RawMessage(`1`), "merge")
	assert.Error(t, err)
}

func TestGet_RejectsMissingKey(t *testing.T) {
	s := &Service{log: discardLogger()}
	_, err := s.Get(nil, "c1", "")
	assert.Error(t, err)
}
