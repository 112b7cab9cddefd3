package entity

// Conversation is the derived view of all messages exchanged with one
// partner. It is recomputed on every fetch and never stored.
type Conversation struct {
	PartnerID      string     `json:"partner_id"`
	Messages       []*Message `json:"messages,omitempty"`
	UnreadCount    int        `json:"unread_count"`
	LastMessage    *Message   `json:"last_message,omitempty"`
	ListingID      string     `json:"listing_id,omitempty"`
	PartnerProfile *Profile   `json:"partner_profile,omitempty"`
	Listing        *Listing   `json:"listing,omitempty"`
}

// Profile is the public subset of a user's account used to label a
// conversation. Fetched from the profiles collection in one batched
// lookup per conversation list.
type Profile struct {
	ID        string `json:"id" firestore:"id"`
	FullName  string `json:"full_name,omitempty" firestore:"fullName,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty" firestore:"avatarUrl,omitempty"`
}

// Listing is the vehicle summary attached to a conversation when the
// chat concerns a marketplace item.
type Listing struct {
	ID    string  `json:"id" firestore:"id"`
	Make  string  `json:"make,omitempty" firestore:"make,omitempty"`
	Model string  `json:"model,omitempty" firestore:"model,omitempty"`
	Year  int     `json:"year,omitempty" firestore:"year,omitempty"`
	Price float64 `json:"price,omitempty" firestore:"price,omitempty"`
}
