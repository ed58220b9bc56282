package domain

// Digest summarizes one conversation for the inbox view.
type Digest struct {
	Peer        *Contact `json:"user"`
	LastMessage Message  `json:"last_message"`
	UnreadCount int      `json:"unread_count"`
}
