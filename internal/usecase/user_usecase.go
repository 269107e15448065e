package usecase

import (
	"context"

	"parley/internal/domain/entity"
	"parley/internal/domain/repository"
	ws "parley/internal/infrastructure/websocket"
	"parley/pkg/errors"
	"parley/pkg/logger"
)

type UserUseCase struct {
	userRepo    repository.UserRepository
	channelRepo repository.ChannelRepository
	bus         Bus
	files       FileStore
}

func NewUserUseCase(
	userRepo repository.UserRepository,
	channelRepo repository.ChannelRepository,
	bus Bus,
	files FileStore,
) *UserUseCase {
	return &UserUseCase{
		userRepo:    userRepo,
		channelRepo: channelRepo,
		bus:         bus,
		files:       files,
	}
}

type UpdateProfileInput struct {
	Name      string
	AvatarURL string
}

func (uc *UserUseCase) Me(ctx context.Context, userID string) (*entity.User, error) {
	return uc.userRepo.GetByID(ctx, userID)
}

// UpdateProfile updates the user's display fields. A rename is fanned out
// to everyone sharing a channel with them, since direct channels are
// titled after the other participant.
func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	renamed := input.Name != "" && input.Name != user.Name
	if input.Name != "" {
		user.Name = input.Name
	}
	if input.AvatarURL != "" && input.AvatarURL != user.AvatarURL {
		// The replaced avatar is an orphan in storage once the profile
		// points elsewhere.
		if user.AvatarURL != "" && uc.files != nil {
			if err := uc.files.DeleteFile(ctx, user.AvatarURL); err != nil {
				logger.Error("Failed to delete replaced avatar for user %s: %v", userID, err)
			}
		}
		user.AvatarURL = input.AvatarURL
	}
	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if renamed {
		uc.fanOutRename(ctx, user)
	}
	return user, nil
}

func (uc *UserUseCase) fanOutRename(ctx context.Context, user *entity.User) {
	channels, err := uc.channelRepo.ListByMember(ctx, user.ID)
	if err != nil {
		return
	}

	notified := map[string]bool{user.ID: true}
	payload := map[string]string{"userId": user.ID, "name": user.Name}
	for _, ch := range channels {
		for _, memberID := range ch.Members {
			if notified[memberID] {
				continue
			}
			notified[memberID] = true
			uc.bus.PublishToUser(memberID, ws.EventUserNameUpdated, payload)
		}
	}
}

func (uc *UserUseCase) List(ctx context.Context, limit, offset int) ([]*entity.User, int, error) {
	return uc.userRepo.List(ctx, limit, offset)
}

func (uc *UserUseCase) RegisterDevice(ctx context.Context, userID, token string) error {
	if token == "" {
		return errors.BadRequest("Device token is required", nil)
	}
	return uc.userRepo.AddDeviceToken(ctx, userID, token)
}
