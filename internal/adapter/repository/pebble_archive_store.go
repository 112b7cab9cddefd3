package repository

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	"pasarmobil/internal/domain/entity"
	"pasarmobil/internal/domain/repository"
	"pasarmobil/pkg/logger"
)

const (
	archiveKeyPrefix = "archive/"

	// archiveRecordVersion tags every persisted record so the on-disk
	// format can evolve without guessing what an old value means.
	archiveRecordVersion = 1
)

// archiveRecord is the stored value for one (user, partner) pair: a
// version tag plus the ordered message sequence.
type archiveRecord struct {
	Version  int               `json:"version"`
	Messages []*entity.Message `json:"messages"`
}

// PebbleArchiveStore keeps read messages in a Pebble database on local
// disk, one record per user per conversation partner. The database
// belongs to this service instance alone and is not replicated, which
// mirrors the per-device ownership trade-off of the archival design.
type PebbleArchiveStore struct {
	db *pebble.DB
	mu sync.Mutex
}

func NewPebbleArchiveStore(path string) (*PebbleArchiveStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	logger.Info("Opened archive store at %s", path)
	return &PebbleArchiveStore{db: db}, nil
}

func (s *PebbleArchiveStore) Close() error {
	return s.db.Close()
}

var _ repository.ArchiveProvider = (*PebbleArchiveStore)(nil)

func (s *PebbleArchiveStore) ForUser(userID string) repository.ArchiveStore {
	return &pebbleUserArchive{store: s, userID: userID}
}

// pebbleUserArchive is one user's view of the archive database. Keys
// are "archive/<userID>/<partnerID>"; user and partner IDs are opaque
// identifiers that never contain '/'.
type pebbleUserArchive struct {
	store  *PebbleArchiveStore
	userID string
}

// Append inserts the message into the partner's record unless a
// message with the same ID is already archived. The read-modify-write
// runs under the store mutex so racing flows cannot drop entries.
func (a *pebbleUserArchive) Append(partnerID string, message *entity.Message) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	messages := a.load(partnerID)
	for _, existing := range messages {
		if existing.ID == message.ID {
			return nil
		}
	}

	messages = append(messages, message)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	data, err := json.Marshal(archiveRecord{Version: archiveRecordVersion, Messages: messages})
	if err != nil {
		logger.Error("Failed to encode archive record for partner %s: %v", partnerID, err)
		return err
	}

	if err := a.store.db.Set(a.key(partnerID), data, pebble.Sync); err != nil {
		logger.Error("Failed to write archive record for partner %s: %v", partnerID, err)
		return err
	}

	return nil
}

func (a *pebbleUserArchive) GetAll(partnerID string) []*entity.Message {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	return a.load(partnerID)
}

func (a *pebbleUserArchive) GetAllConversations() map[string][]*entity.Message {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	conversations := make(map[string][]*entity.Message)
	prefix := archiveKeyPrefix + a.userID + "/"

	iter, err := a.store.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "\xff"),
	})
	if err != nil {
		logger.Error("Failed to open archive iterator for user %s: %v", a.userID, err)
		return conversations
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		partnerID := strings.TrimPrefix(string(iter.Key()), prefix)

		var record archiveRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			logger.Error("Corrupt archive record for partner %s, treating as empty: %v", partnerID, err)
			continue
		}
		conversations[partnerID] = record.Messages
	}

	return conversations
}

func (a *pebbleUserArchive) Remove(partnerID string) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	if err := a.store.db.Delete(a.key(partnerID), pebble.Sync); err != nil {
		logger.Error("Failed to remove archive for partner %s: %v", partnerID, err)
		return err
	}
	return nil
}

// load reads one partner's record. Any failure degrades to an empty
// sequence after logging so callers never have to handle a broken
// local tier; the remote tier still renders whatever it holds.
func (a *pebbleUserArchive) load(partnerID string) []*entity.Message {
	value, closer, err := a.store.db.Get(a.key(partnerID))
	if err != nil {
		if err != pebble.ErrNotFound {
			logger.Error("Failed to read archive for partner %s: %v", partnerID, err)
		}
		return []*entity.Message{}
	}
	defer closer.Close()

	var record archiveRecord
	if err := json.Unmarshal(value, &record); err != nil {
		logger.Error("Corrupt archive record for partner %s, treating as empty: %v", partnerID, err)
		return []*entity.Message{}
	}

	if record.Messages == nil {
		return []*entity.Message{}
	}
	return record.Messages
}

func (a *pebbleUserArchive) key(partnerID string) []byte {
	return []byte(archiveKeyPrefix + a.userID + "/" + partnerID)
}
