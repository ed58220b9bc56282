package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/murmur/internal/domain"
	"github.com/vedran77/murmur/internal/metrics"
	"github.com/vedran77/murmur/internal/repository"
	"go.uber.org/zap"
)

// maxReactionAttempts bounds the optimistic read-modify-write loop in React.
const maxReactionAttempts = 5

// MessageService runs every state transition of a message: send, edit,
// react, delete, and the delivered/read receipts. Each transition is one
// atomic store write followed by best-effort realtime events.
type MessageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	online   OnlineLister
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewMessageService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	online OnlineLister,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		messages: messages,
		users:    users,
		online:   online,
		log:      log,
		now:      storeNow,
	}
}

// storeNow returns the current time at the precision the message store keeps.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

type SendInput struct {
	Text        string             `json:"text"`
	Attachment  *domain.Attachment `json:"attachment,omitempty"`
	Sticker     *domain.Sticker    `json:"sticker,omitempty"`
	ReplyToID   *uuid.UUID         `json:"reply_to_id,omitempty"`
	ForwardFrom *uuid.UUID         `json:"forward_from_id,omitempty"`
}

type EditInput struct {
	Text string `json:"text"`
}

type ReactInput struct {
	Emoji string `json:"emoji"`
}

func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, input SendInput) (*domain.Message, error) {
	if senderID == receiverID {
		return nil, ErrSelfMessage
	}

	content := domain.Content{
		Text:       input.Text,
		Attachment: input.Attachment,
		Sticker:    input.Sticker,
	}.Normalize()
	if content.Validate() != nil && input.ForwardFrom == nil {
		return nil, ErrEmptyMessage
	}

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrUserNotFound
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Attachment: content.Attachment,
		Sticker:    content.Sticker,
		Reactions:  []domain.Reaction{},
		DeletedFor: []uuid.UUID{},
		CreatedAt:  s.now(),
	}
	if content.Text != "" {
		msg.Text = &content.Text
	}

	if input.ReplyToID != nil {
		target, err := s.referenced(ctx, senderID, *input.ReplyToID, ErrReplyNotFound)
		if err != nil {
			return nil, err
		}
		msg.ReplyTo = &target.ID
		msg.ReplyPreview = domain.NewPreview(target)
	}

	if input.ForwardFrom != nil {
		source, err := s.referenced(ctx, senderID, *input.ForwardFrom, ErrForwardNotFound)
		if err != nil {
			return nil, err
		}
		msg.ForwardedFrom = domain.NewPreview(source)
	}

	if err := msg.Content().Validate(); err != nil {
		return nil, ErrEmptyMessage
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	metrics.MessageTransitions.WithLabelValues("sent").Inc()

	s.notify(receiverID, domain.EventMessageNew, msg)
	return msg, nil
}

// referenced loads a message that a new message replies to or forwards.
func (s *MessageService) referenced(ctx context.Context, userID, id uuid.UUID, notFound error) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, notFound
	}
	if !msg.IsParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return msg, nil
}

func (s *MessageService) Edit(ctx context.Context, userID, messageID uuid.UUID, input EditInput) (*domain.Message, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageOwner
	}

	updated, err := s.messages.UpdateText(ctx, messageID, text, s.now())
	if err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}
	if updated == nil {
		return nil, ErrMessageNotFound
	}
	metrics.MessageTransitions.WithLabelValues("edited").Inc()

	s.notify(updated.ReceiverID, domain.EventMessageEdit, updated)
	return updated, nil
}

// React toggles userID's reaction. The write is conditional on the version
// that was read, so two participants reacting at once cannot drop each
// other's reaction; the loser re-reads and tries again.
func (s *MessageService) React(ctx context.Context, userID, messageID uuid.UUID, input ReactInput) (*domain.ReactionEvent, error) {
	emoji := strings.TrimSpace(input.Emoji)
	if emoji == "" {
		return nil, ErrEmptyEmoji
	}

	for attempt := 1; attempt <= maxReactionAttempts; attempt++ {
		msg, err := s.load(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if !msg.IsParticipant(userID) {
			return nil, ErrNotParticipant
		}

		msg.ApplyReaction(userID, emoji, s.now())
		updated, err := s.messages.ReplaceReactions(ctx, messageID, msg.Version, msg.Reactions)
		if errors.Is(err, repository.ErrVersionConflict) {
			s.log.Debug("reaction write conflicted",
				zap.Stringer("message_id", messageID),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("updating reactions: %w", err)
		}
		if updated == nil {
			return nil, ErrMessageNotFound
		}
		metrics.MessageTransitions.WithLabelValues("reacted").Inc()

		evt := &domain.ReactionEvent{MessageID: updated.ID, Reactions: updated.Reactions}
		s.notify(updated.ReceiverID, domain.EventMessageReaction, evt)
		s.notify(updated.SenderID, domain.EventMessageReaction, evt)
		return evt, nil
	}

	return nil, ErrReactionContended
}

// Delete hides a message. Scope "me" (the default) hides it for userID only;
// scope "all" is reserved for the sender and hides it for both participants.
func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID, rawScope string) (domain.DeleteScope, error) {
	scope, ok := domain.ParseDeleteScope(rawScope)
	if !ok {
		return "", ErrInvalidScope
	}

	msg, err := s.load(ctx, messageID)
	if err != nil {
		return "", err
	}
	if !msg.IsParticipant(userID) {
		return "", ErrNotParticipant
	}

	var updated *domain.Message
	switch scope {
	case domain.DeleteForEveryone:
		if msg.SenderID != userID {
			return "", ErrNotMessageOwner
		}
		updated, err = s.messages.HideForEveryone(ctx, messageID)
	default:
		updated, err = s.messages.HideFor(ctx, messageID, userID)
	}
	if err != nil {
		return "", fmt.Errorf("deleting message: %w", err)
	}
	if updated == nil {
		return "", ErrMessageNotFound
	}
	metrics.MessageTransitions.WithLabelValues("deleted_" + string(scope)).Inc()

	evt := &domain.DeleteEvent{MessageID: messageID, Scope: scope}
	s.notify(updated.ReceiverID, domain.EventMessageDelete, evt)
	s.notify(updated.SenderID, domain.EventMessageDelete, evt)
	return scope, nil
}

// MarkDelivered records that the receiver's client got the message. Only the
// first acknowledgement stamps the message and notifies the sender.
func (s *MessageService) MarkDelivered(ctx context.Context, userID, messageID uuid.UUID) (*domain.DeliveredEvent, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.ReceiverID != userID {
		return nil, ErrNotRecipient
	}

	at := s.now()
	changed, err := s.messages.MarkDelivered(ctx, []uuid.UUID{messageID}, userID, at)
	if err != nil {
		return nil, fmt.Errorf("marking delivered: %w", err)
	}

	if len(changed) == 0 {
		if msg.DeliveredAt == nil {
			// delivered concurrently between our read and write
			current, err := s.load(ctx, messageID)
			if err != nil {
				return nil, err
			}
			msg = current
		}
		evt := &domain.DeliveredEvent{MessageID: messageID}
		if msg.DeliveredAt != nil {
			evt.DeliveredAt = *msg.DeliveredAt
		}
		return evt, nil
	}

	metrics.MessageTransitions.WithLabelValues("delivered").Inc()
	evt := &domain.DeliveredEvent{MessageID: messageID, DeliveredAt: at}
	s.notify(msg.SenderID, domain.EventMessageDelivered, evt)
	return evt, nil
}

// OpenThread returns the conversation between viewer and peer, oldest first,
// and marks every message the viewer had not read yet as read (and delivered
// if needed). The peer is told which messages were read.
func (s *MessageService) OpenThread(ctx context.Context, viewerID, peerID uuid.UUID) ([]domain.Message, error) {
	peer, err := s.users.GetByID(ctx, peerID)
	if err != nil {
		return nil, err
	}
	if peer == nil {
		return nil, ErrUserNotFound
	}

	thread, err := s.messages.FindThread(ctx, viewerID, peerID)
	if err != nil {
		return nil, fmt.Errorf("loading thread: %w", err)
	}
	if thread == nil {
		thread = []domain.Message{}
	}

	var unread []uuid.UUID
	for _, m := range thread {
		if m.ReceiverID == viewerID && m.ReadAt == nil {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) == 0 {
		return thread, nil
	}

	at := s.now()
	changed, err := s.messages.MarkRead(ctx, unread, viewerID, at)
	if err != nil {
		return nil, fmt.Errorf("marking read: %w", err)
	}
	if len(changed) == 0 {
		return thread, nil
	}

	stamped := make(map[uuid.UUID]struct{}, len(changed))
	for _, id := range changed {
		stamped[id] = struct{}{}
	}
	for i := range thread {
		if _, ok := stamped[thread[i].ID]; !ok {
			continue
		}
		readAt := at
		thread[i].ReadAt = &readAt
		if thread[i].DeliveredAt == nil {
			deliveredAt := at
			thread[i].DeliveredAt = &deliveredAt
		}
	}

	metrics.MessageTransitions.WithLabelValues("read").Add(float64(len(changed)))
	s.notify(peerID, domain.EventMessageRead, &domain.ReadEvent{MessageIDs: changed, ReadAt: at})
	return thread, nil
}

// ListDigests returns one entry per conversation, most recent first.
func (s *MessageService) ListDigests(ctx context.Context, userID uuid.UUID) ([]domain.Digest, error) {
	rows, err := s.messages.ListDigests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing digests: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PeerID)
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	digests := make([]domain.Digest, 0, len(rows))
	for _, row := range rows {
		d := domain.Digest{LastMessage: row.LastMessage, UnreadCount: row.UnreadCount}
		if u, ok := byID[row.PeerID]; ok {
			d.Peer = &domain.Contact{User: u, Online: s.online.IsOnline(u.ID)}
		}
		digests = append(digests, d)
	}
	return digests, nil
}

// ListContacts returns every other user with their current online flag.
func (s *MessageService) ListContacts(ctx context.Context, userID uuid.UUID) ([]domain.Contact, error) {
	users, err := s.users.ListExcept(ctx, userID)
	if err != nil {
		return nil, err
	}

	contacts := make([]domain.Contact, 0, len(users))
	for _, u := range users {
		contacts = append(contacts, domain.Contact{User: u, Online: s.online.IsOnline(u.ID)})
	}
	return contacts, nil
}

func (s *MessageService) OnlineUsers() []uuid.UUID {
	return s.online.ListOnline()
}

func (s *MessageService) load(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

func (s *MessageService) notify(userID uuid.UUID, event string, payload any) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(userID, event, payload)
}
