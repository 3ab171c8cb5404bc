package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shades-uz/api/internal/repositories"
)

// UserServiceDeps bundles collaborators for the user service.
type UserServiceDeps struct {
	Users repositories.UserRepository
}

type userService struct {
	users repositories.UserRepository
}

var _ UserService = (*userService)(nil)

// NewUserService wires dependencies into a concrete UserService implementation.
func NewUserService(deps UserServiceDeps) (UserService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: user repository is required")
	}
	return &userService{users: deps.Users}, nil
}

func (s *userService) ListInstallers(ctx context.Context) ([]AssignedUserView, error) {
	installers, err := s.users.ListInstallers(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]AssignedUserView, 0, len(installers))
	for _, user := range installers {
		views = append(views, AssignedUserView{
			ID:       user.ID,
			Username: user.Username,
			FullName: user.FullName,
		})
	}

	sort.SliceStable(views, func(i, j int) bool {
		return strings.ToLower(views[i].FullName) < strings.ToLower(views[j].FullName)
	})

	return views, nil
}
