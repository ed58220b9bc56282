package mongo

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/murmur/internal/domain"
	"github.com/vedran77/murmur/internal/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestToDocWritesEmptyArrays(t *testing.T) {
	doc := toDoc(&domain.Message{ID: uuid.New(), SenderID: uuid.New(), ReceiverID: uuid.New()})

	// $addToSet and $ne on deleted_for need an array, never null
	assert.NotNil(t, doc.DeletedFor)
	assert.NotNil(t, doc.Reactions)
	assert.Nil(t, doc.ReadAt)
}

// newTestRepo connects to MURMUR_TEST_MONGO_URL and returns a repo backed by
// a throwaway database.
func newTestRepo(t *testing.T) *MessageRepo {
	t.Helper()
	url := os.Getenv("MURMUR_TEST_MONGO_URL")
	if url == "" {
		t.Skip("MURMUR_TEST_MONGO_URL not set")
	}

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	require.NoError(t, err)

	db := client.Database("murmur_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})

	repo := NewMessageRepo(db)
	require.NoError(t, repo.EnsureIndexes(ctx))
	return repo
}

func seed(t *testing.T, repo *MessageRepo, from, to uuid.UUID, text string, at time.Time) *domain.Message {
	t.Helper()
	m := &domain.Message{
		ID:         uuid.New(),
		SenderID:   from,
		ReceiverID: to,
		Text:       &text,
		CreatedAt:  at.UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func TestMessageRepoThreadAndDigests(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	base := time.Now().Add(-time.Hour)

	m1 := seed(t, repo, alice, bob, "hi bob", base)
	m2 := seed(t, repo, bob, alice, "hi alice", base.Add(time.Minute))
	m3 := seed(t, repo, carol, alice, "hey", base.Add(2*time.Minute))
	seed(t, repo, bob, carol, "unrelated", base.Add(3*time.Minute))

	thread, err := repo.FindThread(ctx, alice, bob)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, m1.ID, thread[0].ID)
	assert.Equal(t, m2.ID, thread[1].ID)

	digests, err := repo.ListDigests(ctx, alice)
	require.NoError(t, err)
	require.Len(t, digests, 2)
	assert.Equal(t, carol, digests[0].PeerID)
	assert.Equal(t, m3.ID, digests[0].LastMessage.ID)
	assert.Equal(t, 1, digests[0].UnreadCount)
	assert.Equal(t, bob, digests[1].PeerID)
	assert.Equal(t, 1, digests[1].UnreadCount)

	_, err = repo.HideFor(ctx, m2.ID, alice)
	require.NoError(t, err)

	thread, err = repo.FindThread(ctx, alice, bob)
	require.NoError(t, err)
	require.Len(t, thread, 1)

	bobThread, err := repo.FindThread(ctx, bob, alice)
	require.NoError(t, err)
	assert.Len(t, bobThread, 2)

	digests, err = repo.ListDigests(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, m1.ID, digests[1].LastMessage.ID)
	assert.Equal(t, 0, digests[1].UnreadCount)
}

func TestMessageRepoReadImpliesDelivered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	m := seed(t, repo, alice, bob, "hi", time.Now())

	at := time.Now().UTC().Truncate(time.Millisecond)
	changed, err := repo.MarkRead(ctx, []uuid.UUID{m.ID}, bob, at)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{m.ID}, changed)

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReadAt)
	require.NotNil(t, got.DeliveredAt)
	assert.True(t, got.DeliveredAt.Equal(at))

	later := at.Add(time.Second)
	changed, err = repo.MarkDelivered(ctx, []uuid.UUID{m.ID}, bob, later)
	require.NoError(t, err)
	assert.Empty(t, changed)

	changed, err = repo.MarkRead(ctx, []uuid.UUID{m.ID}, bob, later)
	require.NoError(t, err)
	assert.Empty(t, changed)

	got, err = repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, got.ReadAt.Equal(at))
}

func TestMessageRepoMarkReadIgnoresSender(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	m := seed(t, repo, alice, bob, "hi", time.Now())

	changed, err := repo.MarkRead(ctx, []uuid.UUID{m.ID}, alice, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, err)
	assert.Empty(t, changed)
}

func TestMessageRepoHideForEveryone(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	m := seed(t, repo, alice, bob, "oops", time.Now())

	got, err := repo.HideForEveryone(ctx, m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, got.DeletedFor)

	missing, err := repo.HideForEveryone(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMessageRepoReplaceReactionsIsOptimistic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	m := seed(t, repo, alice, bob, "react to me", time.Now())

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, user := range []uuid.UUID{alice, bob} {
		wg.Add(1)
		go func(i int, user uuid.UUID) {
			defer wg.Done()
			_, results[i] = repo.ReplaceReactions(ctx, m.ID, 0, []domain.Reaction{{UserID: user, Emoji: "👍"}})
		}(i, user)
	}
	wg.Wait()

	var conflicts int
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, repository.ErrVersionConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, conflicts)

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, got.Reactions, 1)
	assert.Equal(t, int64(1), got.Version)
}
