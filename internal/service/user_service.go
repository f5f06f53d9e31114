package service

import (
	"context"
	"strings"

	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/validation"
)

type UserService struct {
	userRepo   repository.UserRepository
	friendRepo repository.FriendRepository
	blockRepo  repository.BlockRepository
}

type UpdateProfileInput struct {
	UserID      uint
	Username    string
	DisplayName string
	Bio         string
	AvatarID    *uint
}

func NewUserService(
	userRepo repository.UserRepository,
	friendRepo repository.FriendRepository,
	blockRepo repository.BlockRepository,
) *UserService {
	return &UserService{
		userRepo:   userRepo,
		friendRepo: friendRepo,
		blockRepo:  blockRepo,
	}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	const maxBioLen = 500
	const maxDisplayNameLen = 50

	if in.Username != "" && in.Username != user.Username {
		if err := validation.ValidateUsername(in.Username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		existing, err := s.userRepo.GetByUsername(ctx, in.Username)
		if err != nil && models.StatusCode(err) != 404 {
			return nil, err
		}
		if existing != nil {
			return nil, models.NewConflictError("Username is already taken")
		}
		user.Username = in.Username
	}
	if in.DisplayName != "" {
		if len(in.DisplayName) > maxDisplayNameLen {
			return nil, models.NewValidationError("Display name too long (max 50 characters)")
		}
		user.DisplayName = in.DisplayName
	}
	if in.Bio != "" {
		if len(in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = in.Bio
	}
	if in.AvatarID != nil {
		img, err := s.userRepo.GetImageByID(ctx, *in.AvatarID)
		if err != nil {
			return nil, err
		}
		if img.OwnerID != in.UserID {
			return nil, models.NewUnauthorizedError("You can only use your own images")
		}
		user.AvatarID = in.AvatarID
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Search finds users by username or display name prefix. Users with a block
// in either direction against the searcher are excluded.
func (s *UserService) Search(ctx context.Context, searcherID uint, query string, limit, offset int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}

	users, err := s.userRepo.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}

	blockedIDs, err := s.blockRepo.BlockedIDsEither(ctx, searcherID)
	if err != nil {
		return nil, err
	}
	blocked := make(map[uint]struct{}, len(blockedIDs))
	for _, id := range blockedIDs {
		blocked[id] = struct{}{}
	}

	filtered := users[:0]
	for _, u := range users {
		if _, ok := blocked[u.ID]; !ok {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	user.IsAdmin = isAdmin
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
