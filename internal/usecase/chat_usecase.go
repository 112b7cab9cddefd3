package usecase

import (
	"context"
	"sort"

	"pasarmobil/internal/domain/entity"
	"pasarmobil/internal/domain/repository"
	"pasarmobil/internal/infrastructure/websocket"
	"pasarmobil/pkg/errors"
	"pasarmobil/pkg/logger"
)

// ChatUseCase implements the hybrid two-tier message flow: messages
// live in the remote row store until the receiver reads them, then get
// copied into the local archive and deleted remotely. Conversations
// are always rebuilt from the union of both tiers, deduped by message
// ID, so a message that transiently exists in both (archived but not
// yet purged) appears exactly once.
type ChatUseCase struct {
	messageRepo repository.MessageRepository
	archives    repository.ArchiveProvider
	profileRepo repository.ProfileRepository
	listingRepo repository.ListingRepository
	wsManager   *websocket.Manager
}

func NewChatUseCase(
	messageRepo repository.MessageRepository,
	archives repository.ArchiveProvider,
	profileRepo repository.ProfileRepository,
	listingRepo repository.ListingRepository,
	wsManager *websocket.Manager,
) *ChatUseCase {
	return &ChatUseCase{
		messageRepo: messageRepo,
		archives:    archives,
		profileRepo: profileRepo,
		listingRepo: listingRepo,
		wsManager:   wsManager,
	}
}

type SendMessageInput struct {
	ReceiverID string
	Body       string
	ListingID  string
}

// SendMessage writes the message to the remote tier, keeps a copy in
// the sender's own archive, and notifies the receiver if connected.
// The sender-side copy matters: once the receiver reads the message
// the remote row is purged, so the sender's view of the conversation
// must come from their archive.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	if senderID == input.ReceiverID {
		return nil, errors.BadRequest("Cannot send a message to yourself", nil)
	}

	message := &entity.Message{
		SenderID:   senderID,
		ReceiverID: input.ReceiverID,
		Body:       input.Body,
		ListingID:  input.ListingID,
		IsRead:     false,
	}

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	// Archive failures never block sending; the remote row is the
	// authoritative copy until the receiver reads it.
	if err := uc.archives.ForUser(senderID).Append(input.ReceiverID, message); err != nil {
		logger.LogArchivalError(input.ReceiverID, "append_sent", err)
	}

	uc.wsManager.SendEvent(input.ReceiverID, websocket.Event{Type: "message", Data: message})

	return message, nil
}

// ListConversations rebuilds the user's conversation list from the
// union of remote rows and the local archive, grouped by the other
// participant. A remote failure aborts; enrichment failures degrade to
// conversations without profile or listing data.
func (uc *ChatUseCase) ListConversations(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	remote, err := uc.messageRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	pool := make([]*entity.Message, 0, len(remote))
	pool = append(pool, remote...)
	for _, archived := range uc.archives.ForUser(userID).GetAllConversations() {
		pool = append(pool, archived...)
	}

	grouped := make(map[string]*entity.Conversation)
	seen := make(map[string]bool, len(pool))
	latestListingAt := make(map[string]int64)

	for _, message := range pool {
		if seen[message.ID] {
			continue
		}
		seen[message.ID] = true

		partnerID := message.PartnerOf(userID)
		conv, ok := grouped[partnerID]
		if !ok {
			conv = &entity.Conversation{PartnerID: partnerID}
			grouped[partnerID] = conv
		}

		conv.Messages = append(conv.Messages, message)

		if message.ReceiverID == userID && !message.IsRead {
			conv.UnreadCount++
		}

		if conv.LastMessage == nil || message.CreatedAt.After(conv.LastMessage.CreatedAt) {
			conv.LastMessage = message
		}

		// Carry forward the most recent listing reference in the group.
		if message.ListingID != "" && message.CreatedAt.UnixNano() >= latestListingAt[partnerID] {
			latestListingAt[partnerID] = message.CreatedAt.UnixNano()
			conv.ListingID = message.ListingID
		}
	}

	conversations := make([]*entity.Conversation, 0, len(grouped))
	for _, conv := range grouped {
		sort.SliceStable(conv.Messages, func(i, j int) bool {
			return conv.Messages[i].CreatedAt.Before(conv.Messages[j].CreatedAt)
		})
		conversations = append(conversations, conv)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.CreatedAt.After(conversations[j].LastMessage.CreatedAt)
	})

	uc.enrich(ctx, conversations)

	return conversations, nil
}

// OpenConversation returns the full merged history with one partner
// and, as a side effect, runs the archival lifecycle over the remote
// messages addressed to the user: copy into the local archive, mark
// read remotely, then delete the remote rows. Each step is idempotent
// or safely retriable, so a failure anywhere leaves the messages
// recoverable on the next open.
func (uc *ChatUseCase) OpenConversation(ctx context.Context, userID, partnerID string) ([]*entity.Message, error) {
	remote, err := uc.messageRepo.ListBetween(ctx, userID, partnerID)
	if err != nil {
		return nil, err
	}

	archive := uc.archives.ForUser(userID)
	merged := mergeHistory(remote, archive.GetAll(partnerID))

	// Every remote row addressed to the user enters the batch, not
	// just unread ones: a row that is read but still remote is a
	// leftover from an earlier failed purge and gets re-archived
	// (a dedupe no-op) and re-purged here.
	var inbound []*entity.Message
	for _, message := range remote {
		if message.ReceiverID == userID {
			inbound = append(inbound, message)
		}
	}

	if len(inbound) > 0 {
		viewedIDs := uc.archiveBatch(ctx, archive, partnerID, inbound)

		// Reflect the read flag in the returned view, but only for
		// messages that actually transitioned.
		viewed := make(map[string]bool, len(viewedIDs))
		for _, id := range viewedIDs {
			viewed[id] = true
		}
		for _, message := range merged {
			if viewed[message.ID] {
				message.IsRead = true
			}
		}
	}

	return merged, nil
}

// DeleteConversation clears the local archive for a partner. Remote
// rows (still-unread messages) are left alone. Per the local-tier
// contract this never surfaces storage failures.
func (uc *ChatUseCase) DeleteConversation(userID, partnerID string) {
	if err := uc.archives.ForUser(userID).Remove(partnerID); err != nil {
		logger.LogArchivalError(partnerID, "remove", err)
	}
}

// archiveReceipt proves one message was durably written to the local
// archive. purge accepts only receipts, so a remote deletion cannot be
// issued for a message whose archival failed. wasUnread remembers
// whether the message still needs its remote read flag set.
type archiveReceipt struct {
	messageID string
	wasUnread bool
}

// archiveBatch advances the inbound batch through the message
// lifecycle. The batch transitions together: per-message archival
// first, then one mark-read call for the newly viewed, then one
// best-effort delete for everything that archived cleanly. Archival
// strictly precedes both remote writes: a message whose local write
// failed keeps its remote row untouched, unread flag included, and the
// whole batch reruns on the next open. It returns the IDs that
// transitioned from unread to read.
func (uc *ChatUseCase) archiveBatch(ctx context.Context, archive repository.ArchiveStore, partnerID string, inbound []*entity.Message) []string {
	// DELIVERED/VIEWED -> ARCHIVED. A failed append leaves the remote
	// row untouched; a duplicate append (re-archival after a failed
	// purge) is a no-op because Append dedupes by ID.
	receipts := make([]archiveReceipt, 0, len(inbound))
	for _, message := range inbound {
		copied := *message
		copied.IsRead = true
		if err := archive.Append(partnerID, &copied); err != nil {
			logger.LogArchivalError(partnerID, "append_viewed", err)
			continue
		}
		receipts = append(receipts, archiveReceipt{messageID: message.ID, wasUnread: !message.IsRead})
	}

	if len(receipts) == 0 {
		return nil
	}

	// DELIVERED -> VIEWED, batched over the archived subset. If this
	// fails the rows stay unread and remote; the archive copies are
	// already in place and the flow reruns on the next open.
	viewedIDs := make([]string, 0, len(receipts))
	for _, receipt := range receipts {
		if receipt.wasUnread {
			viewedIDs = append(viewedIDs, receipt.messageID)
		}
	}
	if err := uc.messageRepo.MarkRead(ctx, viewedIDs); err != nil {
		logger.Error("Failed to mark conversation %s as read: %v", partnerID, err)
		return nil
	}

	uc.purge(ctx, receipts)

	return viewedIDs
}

// purge is ARCHIVED -> PURGED: delete the remote rows whose local
// archival succeeded. Best-effort by design; a failure leaves the row
// in both tiers until dedupe resolves it on the next merge. Messages
// the receiver never opens are never purged, so remote rows for an
// ignored conversation accumulate without bound.
func (uc *ChatUseCase) purge(ctx context.Context, receipts []archiveReceipt) {
	if len(receipts) == 0 {
		return
	}

	ids := make([]string, 0, len(receipts))
	for _, receipt := range receipts {
		ids = append(ids, receipt.messageID)
	}

	if err := uc.messageRepo.Delete(ctx, ids); err != nil {
		logger.Warn("Remote purge failed for %d archived messages (will retry on next view): %v", len(ids), err)
	}
}

// enrich attaches partner profiles and listing summaries in two
// batched lookups. Failures degrade to placeholder display data.
func (uc *ChatUseCase) enrich(ctx context.Context, conversations []*entity.Conversation) {
	partnerIDs := make([]string, 0, len(conversations))
	listingIDs := make([]string, 0, len(conversations))
	seenListing := make(map[string]bool)

	for _, conv := range conversations {
		partnerIDs = append(partnerIDs, conv.PartnerID)
		if conv.ListingID != "" && !seenListing[conv.ListingID] {
			seenListing[conv.ListingID] = true
			listingIDs = append(listingIDs, conv.ListingID)
		}
	}

	profiles, err := uc.profileRepo.GetByIDs(ctx, partnerIDs)
	if err != nil {
		logger.Warn("Profile enrichment failed, showing conversations without partner data: %v", err)
		profiles = map[string]*entity.Profile{}
	}

	listings, err := uc.listingRepo.GetByIDs(ctx, listingIDs)
	if err != nil {
		logger.Warn("Listing enrichment failed, showing conversations without listing data: %v", err)
		listings = map[string]*entity.Listing{}
	}

	for _, conv := range conversations {
		conv.PartnerProfile = profiles[conv.PartnerID]
		if conv.ListingID != "" {
			conv.Listing = listings[conv.ListingID]
		}
	}
}

// mergeHistory unions the two tiers for one conversation, deduped by
// ID and ordered by CreatedAt ascending. This is the invariant the
// whole archival scheme rests on: remote ∪ local is always the
// complete, gap-free history.
func mergeHistory(remote, local []*entity.Message) []*entity.Message {
	seen := make(map[string]bool, len(remote)+len(local))
	merged := make([]*entity.Message, 0, len(remote)+len(local))

	for _, message := range append(remote, local...) {
		if seen[message.ID] {
			continue
		}
		seen[message.ID] = true

		copied := *message
		merged = append(merged, &copied)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})

	return merged
}
