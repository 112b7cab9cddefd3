package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"pasarmobil/internal/domain/entity"
	"pasarmobil/internal/domain/repository"
	"pasarmobil/pkg/errors"
	"pasarmobil/pkg/logger"
)

type firestoreListingRepository struct {
	client *firestore.Client
}

func NewFirestoreListingRepository(client *firestore.Client) repository.ListingRepository {
	return &firestoreListingRepository{
		client: client,
	}
}

func (r *firestoreListingRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Listing, error) {
	if len(ids) == 0 {
		return map[string]*entity.Listing{}, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection("listings").Doc(id))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to fetch listings", err)
	}

	listings := make(map[string]*entity.Listing, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}

		var listing entity.Listing
		if err := doc.DataTo(&listing); err != nil {
			logger.Warn("Error parsing listing %s: %v", doc.Ref.ID, err)
			continue
		}
		if listing.ID == "" {
			listing.ID = doc.Ref.ID
		}
		listings[listing.ID] = &listing
	}

	return listings, nil
}
