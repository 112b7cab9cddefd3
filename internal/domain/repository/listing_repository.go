package repository

import (
	"context"

	"pasarmobil/internal/domain/entity"
)

type ListingRepository interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Listing, error)
}
