package services

import (
	"context"
	"errors"
	"strings"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

const adminSearchLimit = 50

type AdminService struct {
	store repository.Store
}

func NewAdminService(store repository.Store) *AdminService {
	return &AdminService{store: store}
}

// SearchClients finds client profiles by a case-insensitive substring of
// name, email or phone. Only active professionals may search.
func (s *AdminService) SearchClients(ctx context.Context, caller Caller, query string) ([]models.Profile, error) {
	if caller.UserID == 0 {
		return nil, utils.ErrUnauthorized
	}
	profile, err := s.store.GetProfile(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.ErrUnauthorized
		}
		return nil, utils.NewInternal(err)
	}
	if profile.Role != models.RoleProfessional || profile.Status != models.ProfileActive || profile.IsDeleted() {
		return nil, utils.NewForbidden("only active professionals can search users")
	}

	clients, err := s.store.SearchProfiles(ctx, repository.ProfileFilter{
		Role:  models.RoleClient,
		Query: strings.TrimSpace(query),
		Limit: adminSearchLimit,
	})
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if clients == nil {
		clients = []models.Profile{}
	}
	return clients, nil
}
