package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/murmur/internal/domain"
	"github.com/vedran77/murmur/internal/repository"
)

// memUsers is an in-memory repository.UserRepository.
type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]domain.User
}

func newMemUsers(users ...domain.User) *memUsers {
	r := &memUsers{users: make(map[uuid.UUID]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUsers) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return &repository.DuplicateError{Field: "email"}
		}
		if u.Username == user.Username {
			return &repository.DuplicateError{Field: "username"}
		}
	}
	r.users[user.ID] = *user
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memUsers) ListExcept(_ context.Context, id uuid.UUID) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *memUsers) ListByIDs(_ context.Context, ids []uuid.UUID) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUsers) UpdateProfile(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = *user
	return nil
}

// memMessages is an in-memory repository.MessageRepository with the same
// per-document atomicity as the Mongo implementation.
type memMessages struct {
	mu   sync.Mutex
	msgs map[uuid.UUID]*domain.Message
	seq  []uuid.UUID

	// beforeReplace runs inside ReplaceReactions before the version check,
	// letting tests land a competing write.
	beforeReplace func(m *domain.Message)
}

func newMemMessages() *memMessages {
	return &memMessages{msgs: make(map[uuid.UUID]*domain.Message)}
}

func (r *memMessages) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[msg.ID] = cloneMessage(msg)
	r.seq = append(r.seq, msg.ID)
	return nil
}

func (r *memMessages) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, nil
	}
	return cloneMessage(m), nil
}

func (r *memMessages) FindThread(_ context.Context, viewer, peer uuid.UUID) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, id := range r.seq {
		m := r.msgs[id]
		inThread := (m.SenderID == viewer && m.ReceiverID == peer) ||
			(m.SenderID == peer && m.ReceiverID == viewer)
		if inThread && !m.IsHiddenFor(viewer) {
			out = append(out, *cloneMessage(m))
		}
	}
	return out, nil
}

func (r *memMessages) ListDigests(_ context.Context, userID uuid.UUID) ([]repository.DigestRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byPeer := make(map[uuid.UUID]*repository.DigestRow)
	var order []uuid.UUID
	// newest first
	for i := len(r.seq) - 1; i >= 0; i-- {
		m := r.msgs[r.seq[i]]
		if !m.IsParticipant(userID) || m.IsHiddenFor(userID) {
			continue
		}
		peer := m.Peer(userID)
		row, ok := byPeer[peer]
		if !ok {
			row = &repository.DigestRow{PeerID: peer, LastMessage: *cloneMessage(m)}
			byPeer[peer] = row
			order = append(order, peer)
		}
		if m.ReceiverID == userID && m.ReadAt == nil {
			row.UnreadCount++
		}
	}
	out := make([]repository.DigestRow, 0, len(order))
	for _, p := range order {
		out = append(out, *byPeer[p])
	}
	return out, nil
}

func (r *memMessages) MarkDelivered(_ context.Context, ids []uuid.UUID, recipient uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed []uuid.UUID
	for _, id := range ids {
		m, ok := r.msgs[id]
		if !ok || m.ReceiverID != recipient || m.DeliveredAt != nil {
			continue
		}
		t := at
		m.DeliveredAt = &t
		m.Version++
		changed = append(changed, id)
	}
	return changed, nil
}

func (r *memMessages) MarkRead(_ context.Context, ids []uuid.UUID, reader uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var changed []uuid.UUID
	for _, id := range ids {
		m, ok := r.msgs[id]
		if !ok || m.ReceiverID != reader || m.ReadAt != nil {
			continue
		}
		t := at
		m.ReadAt = &t
		if m.DeliveredAt == nil {
			d := at
			m.DeliveredAt = &d
		}
		m.Version++
		changed = append(changed, id)
	}
	return changed, nil
}

func (r *memMessages) UpdateText(_ context.Context, id uuid.UUID, text string, editedAt time.Time) (*domain.Message, error) {
	return r.update(id, func(m *domain.Message) {
		m.Text = &text
		m.EditedAt = &editedAt
	})
}

func (r *memMessages) HideFor(_ context.Context, id, userID uuid.UUID) (*domain.Message, error) {
	return r.update(id, func(m *domain.Message) { m.HideFor(userID) })
}

func (r *memMessages) HideForEveryone(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	return r.update(id, func(m *domain.Message) { m.HideForEveryone() })
}

func (r *memMessages) ReplaceReactions(_ context.Context, id uuid.UUID, expectedVersion int64, reactions []domain.Reaction) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, nil
	}
	if r.beforeReplace != nil {
		r.beforeReplace(m)
	}
	if m.Version != expectedVersion {
		return nil, repository.ErrVersionConflict
	}
	m.Reactions = append([]domain.Reaction{}, reactions...)
	m.Version++
	return cloneMessage(m), nil
}

func (r *memMessages) update(id uuid.UUID, fn func(m *domain.Message)) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, nil
	}
	fn(m)
	m.Version++
	return cloneMessage(m), nil
}

func (r *memMessages) stored(id uuid.UUID) *domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneMessage(r.msgs[id])
}

func cloneMessage(m *domain.Message) *domain.Message {
	c := *m
	c.Reactions = append([]domain.Reaction{}, m.Reactions...)
	c.DeletedFor = append([]uuid.UUID{}, m.DeletedFor...)
	return &c
}

type sentEvent struct {
	To      uuid.UUID
	Event   string
	Payload any
}

// recordingNotifier captures events instead of pushing them. Only users in
// online receive anything, mirroring the hub's drop-when-offline rule.
type recordingNotifier struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	events []sentEvent
}

func newRecordingNotifier(online ...uuid.UUID) *recordingNotifier {
	n := &recordingNotifier{online: make(map[uuid.UUID]bool)}
	for _, id := range online {
		n.online[id] = true
	}
	return n
}

func (n *recordingNotifier) Notify(userID uuid.UUID, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return
	}
	n.events = append(n.events, sentEvent{To: userID, Event: event, Payload: payload})
}

func (n *recordingNotifier) Broadcast(event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id := range n.online {
		n.events = append(n.events, sentEvent{To: id, Event: event, Payload: payload})
	}
}

func (n *recordingNotifier) sentTo(userID uuid.UUID, event string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentEvent
	for _, e := range n.events {
		if e.To == userID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// memBlocklist is an in-memory repository.TokenBlocklist.
type memBlocklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newMemBlocklist() *memBlocklist {
	return &memBlocklist{revoked: make(map[string]time.Duration)}
}

func (b *memBlocklist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[tokenID] = ttl
	return nil
}

func (b *memBlocklist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[tokenID]
	return ok, nil
}
