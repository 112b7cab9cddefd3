package repository

import "pasarmobil/internal/domain/entity"

// ArchiveProvider hands out each user's private archive namespace.
// The original design gave every client device its own local storage;
// here the service instance hosts one namespace per user instead. The
// trade-off is the same and deliberately unchanged: the archive is not
// replicated, so history archived by one instance is invisible to any
// other.
type ArchiveProvider interface {
	ForUser(userID string) ArchiveStore
}

// ArchiveStore is one user's local tier: a durable per-partner archive
// of messages that have been read and purged from the remote store.
//
// Read paths never fail: corrupt or unreadable records degrade to an
// empty result after logging, so the remote tier alone still renders.
// Append returns an error solely so callers can gate the remote purge
// on a confirmed local write; it is never surfaced to users.
type ArchiveStore interface {
	// Append inserts the message into the partner's archive, keeping
	// the sequence sorted by CreatedAt. Appending an ID that already
	// exists is a no-op: archived messages are immutable.
	Append(partnerID string, message *entity.Message) error

	// GetAll returns the partner's archived sequence in CreatedAt
	// order, or an empty slice.
	GetAll(partnerID string) []*entity.Message

	// GetAllConversations maps every archived partner ID to its
	// message sequence. Fallback aggregation source only.
	GetAllConversations() map[string][]*entity.Message

	// Remove clears the partner's archive entirely. No undo.
	Remove(partnerID string) error
}
