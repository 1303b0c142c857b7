package services

import (
	"context"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/graph"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/vector"
)

// UserService owns the user lifecycle: creation with seed schemas, and the
// cascading delete across both stores.
type UserService struct {
	log      *logger.Logger
	graph    graph.Store
	vectors  vector.Store
	registry *SchemaRegistry
}

func NewUserService(log *logger.Logger, g graph.Store, v vector.Store, registry *SchemaRegistry) (*UserService, error) {
	if log == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "user_service.new", "logger required")
	}
	if g == nil || v == nil || registry == nil {
		return nil, kgerr.Errorf(kgerr.KindInternal, "user_service.new", "graph store, vector store and schema registry required")
	}
	return &UserService{
		log:      log.With("service", "UserService"),
		graph:    g,
		vectors:  v,
		registry: registry,
	}, nil
}

// CreateUser merges the user root and installs the seed schemas. Returns
// whether the user already existed; re-creation is not an error.
func (s *UserService) CreateUser(ctx context.Context, userID string) (existed bool, err error) {
	if !domain.ValidUserID(userID) {
		return false, kgerr.Errorf(kgerr.KindInvalidUserID, "user_service.create", "invalid user id")
	}

	existed, err = s.graph.UserExists(ctx, userID)
	if err != nil {
		return false, err
	}

	if err := s.graph.CreateUser(ctx, userID); err != nil {
		return false, err
	}
	if err := s.registry.EnsureSeedSchemas(ctx, userID); err != nil {
		return false, err
	}

	if !existed {
		s.log.Info("user created", "user_id", userID)
	}
	return existed, nil
}

func (s *UserService) UserExists(ctx context.Context, userID string) (bool, error) {
	if !domain.ValidUserID(userID) {
		return false, kgerr.Errorf(kgerr.KindInvalidUserID, "user_service.exists", "invalid user id")
	}
	return s.graph.UserExists(ctx, userID)
}

// DeleteUser removes everything the user owns. Vectors go first so a
// failure partway cannot leave vectors pointing at deleted nodes; the graph
// delete runs in one transaction.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	if !domain.ValidUserID(userID) {
		return kgerr.Errorf(kgerr.KindInvalidUserID, "user_service.delete", "invalid user id")
	}

	exists, err := s.graph.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return kgerr.Errorf(kgerr.KindUserAbsent, "user_service.delete", "user does not exist")
	}

	if err := s.vectors.DeleteUserVectors(ctx, userID); err != nil {
		return err
	}
	if err := s.graph.DeleteUser(ctx, userID); err != nil {
		return err
	}

	s.log.Info("user deleted", "user_id", userID)
	return nil
}
