package repository

import (
	"context"

	"pasarmobil/internal/domain/entity"
)

type ProfileRepository interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Profile, error)
}
