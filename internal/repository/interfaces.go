package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/murmur/internal/domain"
)

// ErrVersionConflict is returned by optimistic writes when the stored
// document changed since it was read.
var ErrVersionConflict = errors.New("document version conflict")

// DuplicateError reports a unique constraint violation on Field.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return "duplicate value for " + e.Field
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ListExcept(ctx context.Context, id uuid.UUID) ([]domain.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.User, error)
	UpdateProfile(ctx context.Context, user *domain.User) error
}

// DigestRow is one conversation in a user's inbox before peer details are joined.
type DigestRow struct {
	PeerID      uuid.UUID
	LastMessage domain.Message
	UnreadCount int
}

// MessageRepository is the message store. Lookups return (nil, nil) when the
// message does not exist. Every mutating method is a single atomic
// per-document update.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// FindThread lists the messages between viewer and peer that are not
	// hidden for viewer, oldest first.
	FindThread(ctx context.Context, viewer, peer uuid.UUID) ([]domain.Message, error)
	// ListDigests returns the newest visible message and unread count per
	// peer, most recently active peer first.
	ListDigests(ctx context.Context, userID uuid.UUID) ([]DigestRow, error)
	// MarkDelivered and MarkRead only fill unset timestamps and return the
	// ids that actually changed. MarkRead also fills delivered_at.
	MarkDelivered(ctx context.Context, ids []uuid.UUID, recipient uuid.UUID, at time.Time) ([]uuid.UUID, error)
	MarkRead(ctx context.Context, ids []uuid.UUID, reader uuid.UUID, at time.Time) ([]uuid.UUID, error)
	UpdateText(ctx context.Context, id uuid.UUID, text string, editedAt time.Time) (*domain.Message, error)
	HideFor(ctx context.Context, id, userID uuid.UUID) (*domain.Message, error)
	HideForEveryone(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ReplaceReactions stores reactions only if the document is still at
	// expectedVersion, otherwise it returns ErrVersionConflict.
	ReplaceReactions(ctx context.Context, id uuid.UUID, expectedVersion int64, reactions []domain.Reaction) (*domain.Message, error)
}

// TokenBlocklist remembers revoked access tokens until they expire.
type TokenBlocklist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
