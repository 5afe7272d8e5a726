package cluster

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/agentcp/controlplane/pkg/apperror"
	"github.com/agentcp/controlplane/pkg/auth"
	"github.com/agentcp/controlplane/pkg/logger"
)

const maxNameLength = 120

// Service implements cluster business logic.
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new cluster service.
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log.With(logger.Scope("cluster.svc"))}
}

// Create validates and persists a new cluster, generating its bearer API key.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.ErrBadRequest.WithMessage("cluster name is required")
	}
	if len(name) > maxNameLength {
		return nil, apperror.ErrBadRequest.WithMessage("cluster name must be at most 120 characters")
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}

	c := &Cluster{
		Name:                     name,
		Description:              req.Description,
		AdditionalContext:        req.AdditionalContext,
		Debug:                    req.Debug,
		EnableCustomAuth:         req.EnableCustomAuth,
		HandleCustomAuthFunction: req.HandleCustomAuthFunction,
		IsDemo:                   req.IsDemo,
		APIKeyHash:               auth.HashAPIKey(apiKey),
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info("cluster created", slog.String("clusterId", c.ID), slog.String("name", c.Name))

	return &CreateResponse{Cluster: *c, APIKey: apiKey}, nil
}

// GetByID returns a cluster by id.
func (s *Service) GetByID(ctx context.Context, id string) (*Cluster, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all clusters.
func (s *Service) List(ctx context.Context) ([]Cluster, error) {
	return s.repo.List(ctx)
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "cpk_" + hex.EncodeToString(buf), nil
}
