package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bibliora/library-system/internal/core/domain"
)

const collectionCards = "library_cards"

// CardRepository implements ports.CardRepository on MongoDB. The unique index
// on card_number is the authoritative uniqueness enforcement; the service's
// retry loop recovers from insert races it reports.
type CardRepository struct {
	col *mongo.Collection
}

func NewCardRepository(db *mongo.Database) *CardRepository {
	return &CardRepository{col: db.Collection(collectionCards)}
}

func (r *CardRepository) FindByID(ctx context.Context, id string) (*domain.LibraryCard, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["_id"] = id

	var c domain.LibraryCard
	if err := r.col.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CardRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.LibraryCard, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["user_id"] = userID

	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.LibraryCard
	for cur.Next(ctx) {
		var c domain.LibraryCard
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (r *CardRepository) ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["card_number"] = cardNumber

	n, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CardRepository) CountActiveByUserID(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["user_id"] = userID
	filter["status"] = string(domain.CardActive)
	return r.col.CountDocuments(ctx, filter)
}

func (r *CardRepository) Insert(ctx context.Context, card *domain.LibraryCard) (*domain.LibraryCard, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if card.ID == "" {
		card.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.col.InsertOne(ctx, card); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrCardNumberTaken
		}
		return nil, err
	}
	return card, nil
}

func (r *CardRepository) Update(ctx context.Context, card *domain.LibraryCard) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["_id"] = card.ID

	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"status":     string(card.Status),
		"expires_at": card.ExpiresAt.UTC(),
		"updated_at": card.UpdatedAt.UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

func (r *CardRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time, deletedBy string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["_id"] = id

	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"deleted_at": deletedAt.UTC(),
		"updated_at": deletedAt.UTC(),
		"deleted_by": deletedBy,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

// EnsureIndexes creates the card indexes. card_number is unique across all
// rows, deleted or not, so a number is never recycled.
func (r *CardRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "card_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
