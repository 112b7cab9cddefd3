package repository

import (
	"context"

	"cloud.google.com/go/firestore"

	"pasarmobil/internal/domain/entity"
	"pasarmobil/internal/domain/repository"
	"pasarmobil/pkg/errors"
	"pasarmobil/pkg/logger"
)

type firestoreProfileRepository struct {
	client *firestore.Client
}

func NewFirestoreProfileRepository(client *firestore.Client) repository.ProfileRepository {
	return &firestoreProfileRepository{
		client: client,
	}
}

// GetByIDs fetches all requested profiles in one batched read. Missing
// or unparseable documents are skipped; the caller renders placeholder
// display data for absent IDs.
func (r *firestoreProfileRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Profile, error) {
	if len(ids) == 0 {
		return map[string]*entity.Profile{}, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection("profiles").Doc(id))
	}

	docs, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Internal("Failed to fetch profiles", err)
	}

	profiles := make(map[string]*entity.Profile, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}

		var profile entity.Profile
		if err := doc.DataTo(&profile); err != nil {
			logger.Warn("Error parsing profile %s: %v", doc.Ref.ID, err)
			continue
		}
		if profile.ID == "" {
			profile.ID = doc.Ref.ID
		}
		profiles[profile.ID] = &profile
	}

	return profiles, nil
}
