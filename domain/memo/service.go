package memo

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/logger"
)

// Service implements MemoKV business logic.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new memo service.
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log.With(logger.Scope("memo.svc"))}
}

// Get returns the cell at key.
func (s *Service) Get(ctx context.Context, clusterID, key string) (*Cell, error) {
	if key == "" {
		return nil, apperror.ErrBadRequest.WithMessage("key is required")
	}
	cell, err := s.repo.Get(ctx, clusterID, key)
	if err != nil {
		return nil, err
	}
	if cell == nil {
		return nil, apperror.NewNotFound("key", key)
	}
	return cell, nil
}

// Lookup returns the cell at key, or (nil, nil) if it doesn't exist — unlike
// Get, a miss is not an error. Used by callers (the workflow engine's memo
// steps) that need to tell "never written" apart from "write failed".
func (s *Service) Lookup(ctx context.Context, clusterID, key string) (*Cell, error) {
	return s.repo.Get(ctx, clusterID, key)
}

// Put upserts value at key under onConflict (replace|doNothing, default
// replace) and returns the cell as it now reads.
func (s *Service) Put(ctx context.Context, clusterID, key string, value json.RawMessage, onConflict string) (*Cell, error) {
	if key == "" {
		return nil, apperror.ErrBadRequest.WithMessage("key is required")
	}
	switch onConflict {
	case "", OnConflictReplace:
		onConflict = OnConflictReplace
	case OnConflictDoNothing:
	default:
		return nil, apperror.ErrBadRequest.WithMessage("onConflict must be 'replace' or 'doNothing'")
	}
	if len(value) == 0 {
		value = json.RawMessage("null")
	}

	cell, err := s.repo.Upsert(ctx, clusterID, key, value, onConflict)
	if err != nil {
		return nil, err
	}
	s.log.Debug("memo cell written", slog.String("key", key), slog.String("onConflict", onConflict))
	return cell, nil
}
