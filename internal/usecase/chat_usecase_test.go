package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pasarmobil/internal/adapter/repository"
	"pasarmobil/internal/domain/entity"
	"pasarmobil/internal/infrastructure/websocket"
)

var errRemote = errors.New("remote service unavailable")

// fakeMessageRepo is an in-memory stand-in for the remote row store.
// It records every mark-read and delete call so tests can assert on
// the order and presence of remote writes.
type fakeMessageRepo struct {
	mu   sync.Mutex
	rows map[string]*entity.Message

	failList     bool
	failMarkRead bool
	failDelete   bool

	markReadCalls [][]string
	deleteCalls   [][]string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{rows: make(map[string]*entity.Message)}
}

func (f *fakeMessageRepo) Create(ctx context.Context, message *entity.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if message.ID == "" {
		message.ID = "gen-" + time.Now().Format("150405.000000000")
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	copied := *message
	f.rows[message.ID] = &copied
	return nil
}

func (f *fakeMessageRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failList {
		return nil, errRemote
	}

	var out []*entity.Message
	for _, row := range f.rows {
		if row.SenderID == userID || row.ReceiverID == userID {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) ListBetween(ctx context.Context, userID, partnerID string) ([]*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failList {
		return nil, errRemote
	}

	var out []*entity.Message
	for _, row := range f.rows {
		between := (row.SenderID == userID && row.ReceiverID == partnerID) ||
			(row.SenderID == partnerID && row.ReceiverID == userID)
		if between {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) MarkRead(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	if f.failMarkRead {
		return errRemote
	}

	f.markReadCalls = append(f.markReadCalls, ids)
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			row.IsRead = true
		}
	}
	return nil
}

func (f *fakeMessageRepo) Delete(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}

	f.deleteCalls = append(f.deleteCalls, ids)
	if f.failDelete {
		return errRemote
	}

	for _, id := range ids {
		delete(f.rows, id)
	}
	return nil
}

type fakeProfileRepo struct {
	profiles map[string]*entity.Profile
	fail     bool
}

func (f *fakeProfileRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Profile, error) {
	if f.fail {
		return nil, errRemote
	}

	out := make(map[string]*entity.Profile)
	for _, id := range ids {
		if profile, ok := f.profiles[id]; ok {
			out[id] = profile
		}
	}
	return out, nil
}

type fakeListingRepo struct {
	listings map[string]*entity.Listing
	fail     bool
}

func (f *fakeListingRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.Listing, error) {
	if f.fail {
		return nil, errRemote
	}

	out := make(map[string]*entity.Listing)
	for _, id := range ids {
		if listing, ok := f.listings[id]; ok {
			out[id] = listing
		}
	}
	return out, nil
}

type chatFixture struct {
	uc       *ChatUseCase
	remote   *fakeMessageRepo
	archives *repository.MemoryArchiveStore
	profiles *fakeProfileRepo
	listings *fakeListingRepo
}

func newChatFixture() *chatFixture {
	remote := newFakeMessageRepo()
	archives := repository.NewMemoryArchiveStore()
	profiles := &fakeProfileRepo{profiles: make(map[string]*entity.Profile)}
	listings := &fakeListingRepo{listings: make(map[string]*entity.Listing)}

	return &chatFixture{
		uc:       NewChatUseCase(remote, archives, profiles, listings, websocket.NewManager()),
		remote:   remote,
		archives: archives,
		profiles: profiles,
		listings: listings,
	}
}

func (f *chatFixture) seed(msg entity.Message) {
	copied := msg
	f.remote.rows[msg.ID] = &copied
}

func msgAt(id, senderID, receiverID, body string, at time.Time, read bool) entity.Message {
	return entity.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedAt:  at,
		IsRead:     read,
	}
}

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestSendMessageCreatesRemoteRowAndSenderCopy(t *testing.T) {
	f := newChatFixture()

	message, err := f.uc.SendMessage(context.Background(), "alice", SendMessageInput{
		ReceiverID: "bob",
		Body:       "Is the car still available?",
		ListingID:  "listing-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, message.ID)
	assert.False(t, message.CreatedAt.IsZero())
	assert.False(t, message.IsRead)

	// The remote row is the authoritative unread copy.
	assert.Contains(t, f.remote.rows, message.ID)

	// The sender keeps their own copy, keyed by the receiver: once the
	// receiver reads it the remote row disappears.
	senderCopy := f.archives.ForUser("alice").GetAll("bob")
	require.Len(t, senderCopy, 1)
	assert.Equal(t, message.ID, senderCopy[0].ID)

	assert.Empty(t, f.archives.ForUser("bob").GetAll("alice"))
}

func TestSendMessageToSelfRejected(t *testing.T) {
	f := newChatFixture()

	_, err := f.uc.SendMessage(context.Background(), "alice", SendMessageInput{
		ReceiverID: "alice",
		Body:       "note to self",
	})
	assert.Error(t, err)
	assert.Empty(t, f.remote.rows)
}

func TestListConversationsShowsUnreadBeforeOpen(t *testing.T) {
	f := newChatFixture()
	f.seed(msgAt("m1", "alice", "bob", "Hi", baseTime, false))

	conversations, err := f.uc.ListConversations(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, conversations, 1)

	conv := conversations[0]
	assert.Equal(t, "alice", conv.PartnerID)
	assert.Equal(t, 1, conv.UnreadCount)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "Hi", conv.LastMessage.Body)
}

func TestOpenConversationArchivesAndPurges(t *testing.T) {
	f := newChatFixture()
	f.seed(msgAt("m1", "alice", "bob", "Hi", baseTime, false))

	messages, err := f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRead)

	// Archived locally for bob, keyed by the partner.
	archived := f.archives.ForUser("bob").GetAll("alice")
	require.Len(t, archived, 1)
	assert.Equal(t, "m1", archived[0].ID)
	assert.True(t, archived[0].IsRead)

	// Marked read and purged remotely.
	require.Len(t, f.remote.markReadCalls, 1)
	assert.Equal(t, []string{"m1"}, f.remote.markReadCalls[0])
	require.Len(t, f.remote.deleteCalls, 1)
	assert.Equal(t, []string{"m1"}, f.remote.deleteCalls[0])
	assert.Empty(t, f.remote.rows)

	// History survives purely from the local tier.
	messages, err = f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].ID)
	assert.True(t, messages[0].IsRead)
}

func TestArchiveFailureBlocksAllRemoteWrites(t *testing.T) {
	f := newChatFixture()
	f.archives.FailAppends = true
	f.seed(msgAt("m1", "alice", "bob", "Hi", baseTime, false))

	messages, err := f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Len(t, messages, 1)

	// Nothing was written remotely: the row stays delivered, unread,
	// and retrievable on the next attempt.
	assert.False(t, messages[0].IsRead)
	assert.Empty(t, f.remote.markReadCalls)
	assert.Empty(t, f.remote.deleteCalls)
	require.Contains(t, f.remote.rows, "m1")
	assert.False(t, f.remote.rows["m1"].IsRead)

	// Once the archive recovers the flow completes.
	f.archives.FailAppends = false
	_, err = f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Empty(t, f.remote.rows)
	assert.Len(t, f.archives.ForUser("bob").GetAll("alice"), 1)
}

func TestFailedPurgeRetriesOnNextOpen(t *testing.T) {
	f := newChatFixture()
	f.remote.failDelete = true
	f.seed(msgAt("m1", "alice", "bob", "Hi", baseTime, false))

	// First open archives and marks read; the purge fails and the row
	// lingers in both tiers.
	_, err := f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Contains(t, f.remote.rows, "m1")
	require.Len(t, f.archives.ForUser("bob").GetAll("alice"), 1)

	// The merged view still shows the message exactly once.
	messages, err := f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	// A later open re-archives (no-op) and purges the leftover row
	// even though it is no longer unread.
	f.remote.failDelete = false
	_, err = f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Empty(t, f.remote.rows)
	assert.Len(t, f.archives.ForUser("bob").GetAll("alice"), 1)
}

func TestMarkReadFailureSkipsPurge(t *testing.T) {
	f := newChatFixture()
	f.remote.failMarkRead = true
	f.seed(msgAt("m1", "alice", "bob", "Hi", baseTime, false))

	messages, err := f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.False(t, messages[0].IsRead)

	// Archived locally, but the remote row is untouched.
	assert.Len(t, f.archives.ForUser("bob").GetAll("alice"), 1)
	assert.Empty(t, f.remote.deleteCalls)
	assert.Contains(t, f.remote.rows, "m1")
}

func TestMergedHistorySpansBothTiers(t *testing.T) {
	f := newChatFixture()

	// m1 already archived and purged; m2 in both tiers after a failed
	// purge; m3 only remote.
	bobArchive := f.archives.ForUser("bob")
	m1 := msgAt("m1", "alice", "bob", "first", baseTime, true)
	require.NoError(t, bobArchive.Append("alice", &m1))
	m2 := msgAt("m2", "alice", "bob", "second", baseTime.Add(time.Minute), true)
	require.NoError(t, bobArchive.Append("alice", &m2))

	f.seed(msgAt("m2", "alice", "bob", "second", baseTime.Add(time.Minute), true))
	f.seed(msgAt("m3", "bob", "alice", "third", baseTime.Add(2*time.Minute), false))

	messages, err := f.uc.OpenConversation(context.Background(), "bob", "alice")
	require.NoError(t, err)

	require.Len(t, messages, 3)
	assert.Equal(t, "m1", messages[0].ID)
	assert.Equal(t, "m2", messages[1].ID)
	assert.Equal(t, "m3", messages[2].ID)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
	}
}

func TestConversationsGroupStrictlyByPartner(t *testing.T) {
	f := newChatFixture()
	f.seed(msgAt("m1", "bob", "alice", "about the sedan", baseTime, false))
	f.seed(msgAt("m2", "carol", "alice", "about the same sedan", baseTime.Add(time.Minute), false))

	// Same listing on both conversations must not merge them.
	f.remote.rows["m1"].ListingID = "listing-1"
	f.remote.rows["m2"].ListingID = "listing-1"

	conversations, err := f.uc.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	for _, conv := range conversations {
		for _, message := range conv.Messages {
			assert.Equal(t, conv.PartnerID, message.PartnerOf("alice"))
		}
	}
}

func TestConversationsSortedByRecency(t *testing.T) {
	f := newChatFixture()
	f.seed(msgAt("m1", "bob", "alice", "older", baseTime, false))
	f.seed(msgAt("m2", "carol", "alice", "newer", baseTime.Add(time.Hour), false))

	conversations, err := f.uc.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "carol", conversations[0].PartnerID)
	assert.Equal(t, "bob", conversations[1].PartnerID)
}

func TestConversationCarriesMostRecentListing(t *testing.T) {
	f := newChatFixture()

	m1 := msgAt("m1", "bob", "alice", "about the hatchback", baseTime, false)
	m1.ListingID = "listing-old"
	f.seed(m1)
	m2 := msgAt("m2", "alice", "bob", "what about the wagon?", baseTime.Add(time.Minute), false)
	m2.ListingID = "listing-new"
	f.seed(m2)
	f.seed(msgAt("m3", "bob", "alice", "sure", baseTime.Add(2*time.Minute), false))

	f.listings.listings["listing-new"] = &entity.Listing{ID: "listing-new", Make: "Toyota", Model: "Caldina"}

	conversations, err := f.uc.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "listing-new", conversations[0].ListingID)
	require.NotNil(t, conversations[0].Listing)
	assert.Equal(t, "Caldina", conversations[0].Listing.Model)
}

func TestUnreadCountsOnlyMessagesAddressedToUser(t *testing.T) {
	f := newChatFixture()
	f.seed(msgAt("m1", "bob", "alice", "one", baseTime, false))
	f.seed(msgAt("m2", "bob", "alice", "two", baseTime.Add(time.Minute), true))
	f.seed(msgAt("m3", "alice", "bob", "reply", baseTime.Add(2*time.Minute), false))

	conversations, err := f.uc.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, 1, conversations[0].UnreadCount)
}

func TestListConversationsAbortsOnRemoteFailure(t *testing.T) {
	f := newChatFixture()
	f.remote.failList = true

	conversations, err := f.uc.ListConversations(context.Background(), "alice")
	assert.Error(t, err)
	assert.Nil(t, conversations)
}

func TestEnrichmentFailureDegradesGracefully(t *testing.T) {
	f := newChatFixture()
	f.profiles.fail = true
	f.listings.fail = true

	m1 := msgAt("m1", "bob", "alice", "hello", baseTime, false)
	m1.ListingID = "listing-1"
	f.seed(m1)

	conversations, err := f.uc.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Nil(t, conversations[0].PartnerProfile)
	assert.Nil(t, conversations[0].Listing)
	assert.Equal(t, "listing-1", conversations[0].ListingID)
}

func TestListConversationsIncludesArchiveOnlyHistory(t *testing.T) {
	f := newChatFixture()

	// The whole conversation was read and purged long ago; it must
	// still appear, sourced purely from the local tier.
	m1 := msgAt("m1", "bob", "alice", "sold last month", baseTime, true)
	require.NoError(t, f.archives.ForUser("alice").Append("bob", &m1))

	conversations, err := f.uc.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "bob", conversations[0].PartnerID)
	assert.Equal(t, 0, conversations[0].UnreadCount)
}

func TestDeleteConversationClearsLocalTierOnly(t *testing.T) {
	f := newChatFixture()

	m1 := msgAt("m1", "bob", "alice", "archived", baseTime, true)
	require.NoError(t, f.archives.ForUser("alice").Append("bob", &m1))
	f.seed(msgAt("m2", "bob", "alice", "still remote", baseTime.Add(time.Minute), false))

	f.uc.DeleteConversation("alice", "bob")

	assert.Empty(t, f.archives.ForUser("alice").GetAll("bob"))
	assert.Contains(t, f.remote.rows, "m2")
}
