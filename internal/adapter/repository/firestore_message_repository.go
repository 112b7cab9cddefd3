package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pasarmobil/internal/domain/entity"
	"pasarmobil/internal/domain/repository"
	"pasarmobil/pkg/errors"
	"pasarmobil/pkg/logger"
)

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := r.client.Collection("messages").Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

// ListByUser returns every remote row where the user is sender or
// receiver. Firestore has no OR predicate across two fields in a
// single Where chain, so the two sides are queried separately and
// merged, deduped by message ID.
func (r *firestoreMessageRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Message, error) {
	sent, err := r.runQuery(ctx, r.client.Collection("messages").Where("senderId", "==", userID))
	if err != nil {
		return nil, err
	}

	received, err := r.runQuery(ctx, r.client.Collection("messages").Where("receiverId", "==", userID))
	if err != nil {
		return nil, err
	}

	return mergeMessages(sent, received), nil
}

func (r *firestoreMessageRepository) ListBetween(ctx context.Context, userID, partnerID string) ([]*entity.Message, error) {
	outgoing, err := r.runQuery(ctx, r.client.Collection("messages").
		Where("senderId", "==", userID).
		Where("receiverId", "==", partnerID))
	if err != nil {
		return nil, err
	}

	incoming, err := r.runQuery(ctx, r.client.Collection("messages").
		Where("senderId", "==", partnerID).
		Where("receiverId", "==", userID))
	if err != nil {
		return nil, err
	}

	return mergeMessages(outgoing, incoming), nil
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(ids))

	for _, id := range ids {
		job, err := bw.Update(r.client.Collection("messages").Doc(id), []firestore.Update{
			{Path: "isRead", Value: true},
		})
		if err != nil {
			bw.End()
			return errors.Internal("Failed to queue read-status update", err)
		}
		jobs = append(jobs, job)
	}

	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			// A row another session already purged has nothing left to
			// flag; its archived copy is read by definition.
			if status.Code(err) == codes.NotFound {
				continue
			}
			return errors.Internal("Failed to mark messages as read", err)
		}
	}

	return nil
}

// Delete removes remote rows by ID. A row already deleted by another
// session is not an error: the archival flow treats delete as
// best-effort and another device may have purged first.
func (r *firestoreMessageRepository) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(ids))

	for _, id := range ids {
		job, err := bw.Delete(r.client.Collection("messages").Doc(id))
		if err != nil {
			bw.End()
			return errors.Internal("Failed to queue message deletion", err)
		}
		jobs = append(jobs, job)
	}

	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			if status.Code(err) == codes.NotFound {
				continue
			}
			return errors.Internal("Failed to delete messages", err)
		}
	}

	return nil
}

func (r *firestoreMessageRepository) runQuery(ctx context.Context, query firestore.Query) ([]*entity.Message, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Error("Firestore error while iterating messages: %v", err)
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			logger.Error("Error parsing message row %s: %v", doc.Ref.ID, err)
			return nil, errors.Internal("Failed to parse message data", err)
		}

		// Malformed rows are rejected here instead of flowing into
		// conversation state with missing participants.
		if !message.Validate() {
			logger.Warn("Skipping malformed message row %s", doc.Ref.ID)
			continue
		}

		messages = append(messages, &message)
	}

	return messages, nil
}

func mergeMessages(a, b []*entity.Message) []*entity.Message {
	seen := make(map[string]bool, len(a)+len(b))
	merged := make([]*entity.Message, 0, len(a)+len(b))

	for _, msg := range append(a, b...) {
		if seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true
		merged = append(merged, msg)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})

	return merged
}
