package repository

import (
	"errors"
	"sort"
	"sync"

	"pasarmobil/internal/domain/entity"
	"pasarmobil/internal/domain/repository"
)

var errAppendFailed = errors.New("archive append failed")

// MemoryArchiveStore is an in-memory ArchiveProvider used in tests and
// as a throwaway backend when no durable archive path is configured.
type MemoryArchiveStore struct {
	mu    sync.Mutex
	users map[string]map[string][]*entity.Message

	// FailAppends makes every Append report failure without storing,
	// for exercising the archive-before-purge gate.
	FailAppends bool
}

func NewMemoryArchiveStore() *MemoryArchiveStore {
	return &MemoryArchiveStore{
		users: make(map[string]map[string][]*entity.Message),
	}
}

var _ repository.ArchiveProvider = (*MemoryArchiveStore)(nil)

func (s *MemoryArchiveStore) ForUser(userID string) repository.ArchiveStore {
	return &memoryUserArchive{store: s, userID: userID}
}

type memoryUserArchive struct {
	store  *MemoryArchiveStore
	userID string
}

func (a *memoryUserArchive) Append(partnerID string, message *entity.Message) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	if a.store.FailAppends {
		return errAppendFailed
	}

	conversations, ok := a.store.users[a.userID]
	if !ok {
		conversations = make(map[string][]*entity.Message)
		a.store.users[a.userID] = conversations
	}

	for _, existing := range conversations[partnerID] {
		if existing.ID == message.ID {
			return nil
		}
	}

	messages := append(conversations[partnerID], message)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	conversations[partnerID] = messages

	return nil
}

func (a *memoryUserArchive) GetAll(partnerID string) []*entity.Message {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	messages := a.store.users[a.userID][partnerID]
	out := make([]*entity.Message, len(messages))
	copy(out, messages)
	return out
}

func (a *memoryUserArchive) GetAllConversations() map[string][]*entity.Message {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	out := make(map[string][]*entity.Message, len(a.store.users[a.userID]))
	for partnerID, messages := range a.store.users[a.userID] {
		copied := make([]*entity.Message, len(messages))
		copy(copied, messages)
		out[partnerID] = copied
	}
	return out
}

func (a *memoryUserArchive) Remove(partnerID string) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	delete(a.store.users[a.userID], partnerID)
	return nil
}
