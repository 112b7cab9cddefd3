package entity

import "time"

// Message is a single chat message exchanged between two users about a
// listing. The same struct is stored in both tiers: the shared remote
// row store while unread, and the device-local archive once the
// receiver has read it.
type Message struct {
	ID         string    `json:"id" firestore:"id"`
	SenderID   string    `json:"sender_id" firestore:"senderId"`
	ReceiverID string    `json:"receiver_id" firestore:"receiverId"`
	Body       string    `json:"body" firestore:"body"`
	ListingID  string    `json:"listing_id,omitempty" firestore:"listingId,omitempty"`
	CreatedAt  time.Time `json:"created_at" firestore:"createdAt"`
	IsRead     bool      `json:"is_read" firestore:"isRead"`
}

// Validate rejects malformed rows at the service boundary instead of
// letting partial messages propagate into conversation state.
func (m *Message) Validate() bool {
	return m.ID != "" && m.SenderID != "" && m.ReceiverID != "" && !m.CreatedAt.IsZero()
}

// PartnerOf returns the other participant from userID's point of view.
func (m *Message) PartnerOf(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// MessageState is the per-message archival lifecycle. A message starts
// remote and unread, and ends purged from the remote store with a copy
// in the receiver's local archive. StatePurged is terminal; messages
// the receiver never opens stay in StateDelivered indefinitely.
type MessageState int

const (
	StateDelivered MessageState = iota // remote row, unread
	StateViewed                        // marked read, still remote
	StateArchived                      // copied into the local archive
	StatePurged                        // remote row deleted
)

func (s MessageState) String() string {
	switch s {
	case StateDelivered:
		return "delivered"
	case StateViewed:
		return "viewed"
	case StateArchived:
		return "archived"
	case StatePurged:
		return "purged"
	default:
		return "unknown"
	}
}

// CanTransition reports whether next is a legal successor of s. The
// lifecycle is strictly linear; in particular a message may not reach
// StatePurged without passing through StateArchived first.
func (s MessageState) CanTransition(next MessageState) bool {
	return next == s+1 && next <= StatePurged
}
