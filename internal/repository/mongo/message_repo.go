package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/murmur/internal/domain"
	"github.com/vedran77/murmur/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const messageCollection = "messages"

// MessageRepo stores one document per message. Identifiers are kept as
// canonical uuid strings so they stay readable from the mongo shell.
type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: db.Collection(messageCollection)}
}

// EnsureIndexes creates the indexes used by thread, digest and unread queries.
func (r *MessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "read_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating message indexes: %w", err)
	}
	return nil
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	_, err := r.coll.InsertOne(ctx, toDoc(msg))
	return err
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var doc messageDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r *MessageRepo) FindThread(ctx context.Context, viewer, peer uuid.UUID) ([]domain.Message, error) {
	v, p := viewer.String(), peer.String()
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": v, "receiver_id": p},
			bson.M{"sender_id": p, "receiver_id": v},
		},
		"deleted_for": bson.M{"$ne": v},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(docs))
	for i := range docs {
		m, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, nil
}

type digestDoc struct {
	PeerID string     `bson:"_id"`
	Last   messageDoc `bson:"last"`
	Unread int        `bson:"unread"`
}

func (r *MessageRepo) ListDigests(ctx context.Context, userID uuid.UUID) ([]repository.DigestRow, error) {
	uid := userID.String()
	unread := bson.M{"$cond": bson.A{
		bson.M{"$and": bson.A{
			bson.M{"$eq": bson.A{"$receiver_id", uid}},
			bson.M{"$eq": bson.A{bson.M{"$ifNull": bson.A{"$read_at", nil}}, nil}},
		}},
		1, 0,
	}}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or":         bson.A{bson.M{"sender_id": uid}, bson.M{"receiver_id": uid}},
			"deleted_for": bson.M{"$ne": uid},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$addFields", Value: bson.M{
			"peer": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$sender_id", uid}}, "$receiver_id", "$sender_id"}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$peer",
			"last":   bson.M{"$first": "$$ROOT"},
			"unread": bson.M{"$sum": unread},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last.created_at", Value: -1}}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []digestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	rows := make([]repository.DigestRow, 0, len(docs))
	for i := range docs {
		peer, err := uuid.Parse(docs[i].PeerID)
		if err != nil {
			return nil, fmt.Errorf("digest peer id: %w", err)
		}
		last, err := docs[i].Last.toDomain()
		if err != nil {
			return nil, err
		}
		rows = append(rows, repository.DigestRow{PeerID: peer, LastMessage: *last, UnreadCount: docs[i].Unread})
	}
	return rows, nil
}

func (r *MessageRepo) MarkDelivered(ctx context.Context, ids []uuid.UUID, recipient uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"_id":          bson.M{"$in": idStrings(ids)},
		"receiver_id":  recipient.String(),
		"delivered_at": nil,
	}
	update := bson.M{
		"$set": bson.M{"delivered_at": at},
		"$inc": bson.M{"version": 1},
	}
	if _, err := r.coll.UpdateMany(ctx, filter, update); err != nil {
		return nil, err
	}
	return r.idsStampedAt(ctx, ids, "delivered_at", at)
}

func (r *MessageRepo) MarkRead(ctx context.Context, ids []uuid.UUID, reader uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rid := reader.String()
	filter := bson.M{
		"_id":         bson.M{"$in": idStrings(ids)},
		"receiver_id": rid,
		"read_at":     nil,
		"deleted_for": bson.M{"$ne": rid},
	}
	// pipeline form so delivered_at is backfilled in the same document write
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"read_at":      at,
		"delivered_at": bson.M{"$ifNull": bson.A{"$delivered_at", at}},
		"version":      bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$version", 0}}, 1}},
	}}}}
	if _, err := r.coll.UpdateMany(ctx, filter, update); err != nil {
		return nil, err
	}
	return r.idsStampedAt(ctx, ids, "read_at", at)
}

// idsStampedAt reports which of ids now carry exactly at in field, i.e. the
// ones this call transitioned.
func (r *MessageRepo) idsStampedAt(ctx context.Context, ids []uuid.UUID, field string, at time.Time) ([]uuid.UUID, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": idStrings(ids)}, field: at}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	changed := make([]uuid.UUID, 0, len(docs))
	for _, d := range docs {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return nil, err
		}
		changed = append(changed, id)
	}
	return changed, nil
}

func (r *MessageRepo) UpdateText(ctx context.Context, id uuid.UUID, text string, editedAt time.Time) (*domain.Message, error) {
	return r.findAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{
		"$set": bson.M{"text": text, "edited_at": editedAt},
		"$inc": bson.M{"version": 1},
	})
}

func (r *MessageRepo) HideFor(ctx context.Context, id, userID uuid.UUID) (*domain.Message, error) {
	return r.findAndUpdate(ctx, bson.M{"_id": id.String()}, bson.M{
		"$addToSet": bson.M{"deleted_for": userID.String()},
		"$inc":      bson.M{"version": 1},
	})
}

func (r *MessageRepo) HideForEveryone(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	return r.findAndUpdate(ctx, bson.M{"_id": id.String()}, mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"deleted_for": bson.A{"$sender_id", "$receiver_id"},
		"version":     bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$version", 0}}, 1}},
	}}}})
}

func (r *MessageRepo) ReplaceReactions(ctx context.Context, id uuid.UUID, expectedVersion int64, reactions []domain.Reaction) (*domain.Message, error) {
	msg, err := r.findAndUpdate(ctx, bson.M{"_id": id.String(), "version": expectedVersion}, bson.M{
		"$set": bson.M{"reactions": toReactionDocs(reactions)},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, repository.ErrVersionConflict
	}
	return msg, nil
}

func (r *MessageRepo) findAndUpdate(ctx context.Context, filter bson.M, update any) (*domain.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc messageDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
