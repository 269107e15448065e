package repository

import (
	"context"

	"parley/internal/domain/entity"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	AddDeviceToken(ctx context.Context, userID, token string) error
	List(ctx context.Context, limit, offset int) ([]*entity.User, int, error)
}
