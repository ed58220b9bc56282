package mongo

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/murmur/internal/domain"
)

type reactionDoc struct {
	UserID    string    `bson:"user_id"`
	Emoji     string    `bson:"emoji"`
	CreatedAt time.Time `bson:"created_at"`
}

type previewDoc struct {
	MessageID  string             `bson:"message_id"`
	SenderID   string             `bson:"sender_id"`
	Text       string             `bson:"text"`
	Summary    string             `bson:"summary"`
	Attachment *domain.Attachment `bson:"attachment,omitempty"`
	Sticker    *domain.Sticker    `bson:"sticker,omitempty"`
}

// messageDoc is the stored shape of domain.Message. Nullable timestamps are
// written as explicit nulls so "field: null" filters match unset values.
type messageDoc struct {
	ID            string             `bson:"_id"`
	SenderID      string             `bson:"sender_id"`
	ReceiverID    string             `bson:"receiver_id"`
	Text          *string            `bson:"text,omitempty"`
	Attachment    *domain.Attachment `bson:"attachment,omitempty"`
	Sticker       *domain.Sticker    `bson:"sticker,omitempty"`
	Reactions     []reactionDoc      `bson:"reactions"`
	ReplyTo       *string            `bson:"reply_to,omitempty"`
	ReplyPreview  *previewDoc        `bson:"reply_preview,omitempty"`
	ForwardedFrom *previewDoc        `bson:"forwarded_from,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	EditedAt      *time.Time         `bson:"edited_at"`
	DeliveredAt   *time.Time         `bson:"delivered_at"`
	ReadAt        *time.Time         `bson:"read_at"`
	DeletedFor    []string           `bson:"deleted_for"`
	Version       int64              `bson:"version"`
}

func toDoc(m *domain.Message) *messageDoc {
	doc := &messageDoc{
		ID:            m.ID.String(),
		SenderID:      m.SenderID.String(),
		ReceiverID:    m.ReceiverID.String(),
		Text:          m.Text,
		Attachment:    m.Attachment,
		Sticker:       m.Sticker,
		Reactions:     toReactionDocs(m.Reactions),
		ReplyPreview:  toPreviewDoc(m.ReplyPreview),
		ForwardedFrom: toPreviewDoc(m.ForwardedFrom),
		CreatedAt:     m.CreatedAt,
		EditedAt:      m.EditedAt,
		DeliveredAt:   m.DeliveredAt,
		ReadAt:        m.ReadAt,
		DeletedFor:    make([]string, 0, len(m.DeletedFor)),
		Version:       m.Version,
	}
	if m.ReplyTo != nil {
		s := m.ReplyTo.String()
		doc.ReplyTo = &s
	}
	for _, id := range m.DeletedFor {
		doc.DeletedFor = append(doc.DeletedFor, id.String())
	}
	return doc
}

func toReactionDocs(reactions []domain.Reaction) []reactionDoc {
	docs := make([]reactionDoc, 0, len(reactions))
	for _, r := range reactions {
		docs = append(docs, reactionDoc{UserID: r.UserID.String(), Emoji: r.Emoji, CreatedAt: r.CreatedAt})
	}
	return docs
}

func toPreviewDoc(p *domain.Preview) *previewDoc {
	if p == nil {
		return nil
	}
	return &previewDoc{
		MessageID:  p.MessageID.String(),
		SenderID:   p.SenderID.String(),
		Text:       p.Text,
		Summary:    p.Summary,
		Attachment: p.Attachment,
		Sticker:    p.Sticker,
	}
}

func (d *messageDoc) toDomain() (*domain.Message, error) {
	var err error
	m := &domain.Message{
		Text:        d.Text,
		Attachment:  d.Attachment,
		Sticker:     d.Sticker,
		CreatedAt:   d.CreatedAt,
		EditedAt:    d.EditedAt,
		DeliveredAt: d.DeliveredAt,
		ReadAt:      d.ReadAt,
		Reactions:   make([]domain.Reaction, 0, len(d.Reactions)),
		Version:     d.Version,
	}
	if m.ID, err = parseID("_id", d.ID); err != nil {
		return nil, err
	}
	if m.SenderID, err = parseID("sender_id", d.SenderID); err != nil {
		return nil, err
	}
	if m.ReceiverID, err = parseID("receiver_id", d.ReceiverID); err != nil {
		return nil, err
	}
	if d.ReplyTo != nil {
		id, err := parseID("reply_to", *d.ReplyTo)
		if err != nil {
			return nil, err
		}
		m.ReplyTo = &id
	}
	if m.ReplyPreview, err = d.ReplyPreview.toDomain(); err != nil {
		return nil, err
	}
	if m.ForwardedFrom, err = d.ForwardedFrom.toDomain(); err != nil {
		return nil, err
	}
	for _, r := range d.Reactions {
		uid, err := parseID("reactions.user_id", r.UserID)
		if err != nil {
			return nil, err
		}
		m.Reactions = append(m.Reactions, domain.Reaction{UserID: uid, Emoji: r.Emoji, CreatedAt: r.CreatedAt})
	}
	for _, s := range d.DeletedFor {
		uid, err := parseID("deleted_for", s)
		if err != nil {
			return nil, err
		}
		m.DeletedFor = append(m.DeletedFor, uid)
	}
	return m, nil
}

func (p *previewDoc) toDomain() (*domain.Preview, error) {
	if p == nil {
		return nil, nil
	}
	mid, err := parseID("preview.message_id", p.MessageID)
	if err != nil {
		return nil, err
	}
	sid, err := parseID("preview.sender_id", p.SenderID)
	if err != nil {
		return nil, err
	}
	return &domain.Preview{
		MessageID:  mid,
		SenderID:   sid,
		Text:       p.Text,
		Summary:    p.Summary,
		Attachment: p.Attachment,
		Sticker:    p.Sticker,
	}, nil
}

func parseID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("message document field %s: %w", field, err)
	}
	return id, nil
}
