package usecase

import (
	"context"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	"parley/pkg/errors"
	"parley/pkg/logger"
)

type AuthUseCase struct {
	authClient AuthClient
	userRepo   repository.UserRepository
}

func NewAuthUseCase(authClient AuthClient, userRepo repository.UserRepository) *AuthUseCase {
	return &AuthUseCase{
		authClient: authClient,
		userRepo:   userRepo,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register creates the identity provider account and the matching user
// record, keyed by the provider's uid.
func (uc *AuthUseCase) Register(ctx context.Context, input RegisterInput) (*entity.User, error) {
	if _, err := uc.userRepo.GetByEmail(ctx, input.Email); err == nil {
		return nil, errors.BadRequest("Email is already registered", nil)
	}

	uid, err := uc.authClient.CreateUser(ctx, input.Email, input.Password, input.Name)
	if err != nil {
		return nil, errors.Internal("Failed to create account", err)
	}

	user := &entity.User{
		ID:    uid,
		Email: input.Email,
		Name:  input.Name,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		// Roll the provider account back so the email can be retried.
		if delErr := uc.authClient.DeleteUser(ctx, uid); delErr != nil {
			logger.Error("Failed to roll back auth user %s: %v", uid, delErr)
		}
		return nil, err
	}
	return user, nil
}
