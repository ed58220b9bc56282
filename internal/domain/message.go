package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

type Attachment struct {
	URL      string `json:"url" bson:"url"`
	Name     string `json:"name" bson:"name"`
	MimeType string `json:"mime_type" bson:"mime_type"`
	Size     int64  `json:"size,omitempty" bson:"size,omitempty"`
}

// IsImage reports whether clients should render the attachment inline.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.MimeType, "image/")
}

type Sticker struct {
	URL      string `json:"url" bson:"url"`
	Name     string `json:"name" bson:"name"`
	MimeType string `json:"mime_type" bson:"mime_type"`
}

type Reaction struct {
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// Preview is a point-in-time copy of another message, stored inline on
// replies and forwards. It is never refreshed after creation.
type Preview struct {
	MessageID  uuid.UUID   `json:"message_id"`
	SenderID   uuid.UUID   `json:"sender_id"`
	Text       string      `json:"text"`
	Summary    string      `json:"summary"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Sticker    *Sticker    `json:"sticker,omitempty"`
}

type Message struct {
	ID            uuid.UUID   `json:"id"`
	SenderID      uuid.UUID   `json:"sender_id"`
	ReceiverID    uuid.UUID   `json:"receiver_id"`
	Text          *string     `json:"text,omitempty"`
	Attachment    *Attachment `json:"attachment,omitempty"`
	Sticker       *Sticker    `json:"sticker,omitempty"`
	Reactions     []Reaction  `json:"reactions"`
	ReplyTo       *uuid.UUID  `json:"reply_to,omitempty"`
	ReplyPreview  *Preview    `json:"reply_preview,omitempty"`
	ForwardedFrom *Preview    `json:"forwarded_from,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	EditedAt      *time.Time  `json:"edited_at,omitempty"`
	DeliveredAt   *time.Time  `json:"delivered_at,omitempty"`
	ReadAt        *time.Time  `json:"read_at,omitempty"`
	DeletedFor    []uuid.UUID `json:"-"`
	// Version increases on every stored mutation.
	Version int64 `json:"-"`
}

func (m *Message) IsParticipant(userID uuid.UUID) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Peer returns the other participant from userID's point of view.
func (m *Message) Peer(userID uuid.UUID) uuid.UUID {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

func (m *Message) IsHiddenFor(userID uuid.UUID) bool {
	for _, id := range m.DeletedFor {
		if id == userID {
			return true
		}
	}
	return false
}

// HideFor adds userID to the deletion-visibility set.
func (m *Message) HideFor(userID uuid.UUID) {
	if !m.IsHiddenFor(userID) {
		m.DeletedFor = append(m.DeletedFor, userID)
	}
}

// HideForEveryone hides the message from both participants.
func (m *Message) HideForEveryone() {
	m.DeletedFor = []uuid.UUID{m.SenderID, m.ReceiverID}
}

// ApplyReaction records userID reacting with emoji. Each user holds at most
// one reaction: the same emoji again removes it, a different one replaces it
// in place. New reactions are appended, so the list stays in insertion order.
func (m *Message) ApplyReaction(userID uuid.UUID, emoji string, at time.Time) {
	for i, r := range m.Reactions {
		if r.UserID != userID {
			continue
		}
		if r.Emoji == emoji {
			m.Reactions = append(m.Reactions[:i:i], m.Reactions[i+1:]...)
			return
		}
		m.Reactions[i].Emoji = emoji
		m.Reactions[i].CreatedAt = at
		return
	}
	m.Reactions = append(m.Reactions, Reaction{UserID: userID, Emoji: emoji, CreatedAt: at})
}

// Content returns the message's own payload as a tagged union.
func (m *Message) Content() Content {
	c := Content{Attachment: m.Attachment, Sticker: m.Sticker, Forward: m.ForwardedFrom}
	if m.Text != nil {
		c.Text = *m.Text
	}
	return c
}

// NewPreview snapshots m for use as a reply or forward reference. Forwarding a
// message that is itself only a forward carries the inner content along, so
// the new copy never ends up empty.
func NewPreview(m *Message) *Preview {
	p := &Preview{
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		Attachment: cloneAttachment(m.Attachment),
		Sticker:    cloneSticker(m.Sticker),
	}
	if m.Text != nil {
		p.Text = *m.Text
	}
	if p.Text == "" && p.Attachment == nil && p.Sticker == nil && m.ForwardedFrom != nil {
		p.Text = m.ForwardedFrom.Text
		p.Attachment = cloneAttachment(m.ForwardedFrom.Attachment)
		p.Sticker = cloneSticker(m.ForwardedFrom.Sticker)
	}
	p.Summary = summarize(p.Text, p.Attachment, p.Sticker)
	return p
}

func summarize(text string, att *Attachment, st *Sticker) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	if att != nil {
		if att.IsImage() {
			return "📷 Photo"
		}
		if att.Size > 0 {
			return fmt.Sprintf("📎 %s (%s)", att.Name, humanize.Bytes(uint64(att.Size)))
		}
		return "📎 " + att.Name
	}
	if st != nil {
		return "Sticker"
	}
	return ""
}

func cloneAttachment(a *Attachment) *Attachment {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func cloneSticker(s *Sticker) *Sticker {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

type DeleteScope string

const (
	DeleteForMe       DeleteScope = "me"
	DeleteForEveryone DeleteScope = "all"
)

// ParseDeleteScope maps the wire value to a scope; empty means "me".
func ParseDeleteScope(s string) (DeleteScope, bool) {
	switch DeleteScope(s) {
	case "", DeleteForMe:
		return DeleteForMe, true
	case DeleteForEveryone:
		return DeleteForEveryone, true
	}
	return "", false
}
