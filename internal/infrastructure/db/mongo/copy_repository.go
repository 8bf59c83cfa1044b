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

const collectionCopies = "book_copies"

// CopyRepository implements ports.CopyRepository on MongoDB. Soft-deleted
// rows are filtered out of every query; the status-guarded update gives the
// service layer its compare-and-swap.
type CopyRepository struct {
	col *mongo.Collection
}

func NewCopyRepository(db *mongo.Database) *CopyRepository {
	return &CopyRepository{col: db.Collection(collectionCopies)}
}

// notDeleted is the predicate applied at every query boundary.
func notDeleted() bson.M {
	return bson.M{"deleted_at": nil}
}

func (r *CopyRepository) FindByID(ctx context.Context, id string) (*domain.BookCopy, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["_id"] = id

	var c domain.BookCopy
	if err := r.col.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCopyNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CopyRepository) FindByBookID(ctx context.Context, bookID string) ([]*domain.BookCopy, error) {
	filter := notDeleted()
	filter["book_id"] = bookID
	return r.find(ctx, filter)
}

func (r *CopyRepository) FindAvailableByBookID(ctx context.Context, bookID string) ([]*domain.BookCopy, error) {
	filter := notDeleted()
	filter["book_id"] = bookID
	filter["status"] = string(domain.CopyAvailable)
	return r.find(ctx, filter)
}

func (r *CopyRepository) FindBorrowedByUser(ctx context.Context, userID string) ([]*domain.BookCopy, error) {
	filter := notDeleted()
	filter["status"] = string(domain.CopyBorrowed)
	filter["borrowed_by"] = userID
	return r.find(ctx, filter)
}

func (r *CopyRepository) FindOverdue(ctx context.Context, now time.Time) ([]*domain.BookCopy, error) {
	filter := notDeleted()
	filter["status"] = string(domain.CopyBorrowed)
	filter["due_at"] = bson.M{"$lt": now.UTC()}
	return r.find(ctx, filter)
}

func (r *CopyRepository) FindDueBetween(ctx context.Context, from, to time.Time) ([]*domain.BookCopy, error) {
	filter := notDeleted()
	filter["status"] = string(domain.CopyBorrowed)
	filter["due_at"] = bson.M{"$gte": from.UTC(), "$lte": to.UTC()}
	return r.find(ctx, filter)
}

func (r *CopyRepository) find(ctx context.Context, filter bson.M) ([]*domain.BookCopy, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*domain.BookCopy
	for cur.Next(ctx) {
		var c domain.BookCopy
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (r *CopyRepository) ExistsByBookIDAndCopyNumber(ctx context.Context, bookID, copyNumber string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["book_id"] = bookID
	filter["copy_number"] = copyNumber

	n, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *CopyRepository) CountByBookID(ctx context.Context, bookID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["book_id"] = bookID
	return r.col.CountDocuments(ctx, filter)
}

func (r *CopyRepository) CountAvailableByBookID(ctx context.Context, bookID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["book_id"] = bookID
	filter["status"] = string(domain.CopyAvailable)
	return r.col.CountDocuments(ctx, filter)
}

func (r *CopyRepository) Insert(ctx context.Context, copy *domain.BookCopy) (*domain.BookCopy, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if copy.ID == "" {
		copy.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.col.InsertOne(ctx, copy); err != nil {
		return nil, err
	}
	return copy, nil
}

// Update persists the copy guarded by the status the row held at load time.
// A zero match means either the row vanished or a concurrent writer changed
// the status first; the two cases are told apart with a follow-up read.
func (r *CopyRepository) Update(ctx context.Context, copy *domain.BookCopy, expectedStatus domain.CopyStatus) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["_id"] = copy.ID
	filter["status"] = string(expectedStatus)

	update := bson.M{"$set": bson.M{
		"status":      string(copy.Status),
		"condition":   string(copy.Condition),
		"location":    copy.Location,
		"borrowed_by": copy.BorrowedBy,
		"borrowed_at": copy.BorrowedAt,
		"due_at":      copy.DueAt,
		"updated_at":  copy.UpdatedAt,
	}}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, copy.ID); errors.Is(err, domain.ErrCopyNotFound) {
			return domain.ErrCopyNotFound
		}
		return domain.ErrCopyConflict
	}
	return nil
}

func (r *CopyRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := notDeleted()
	filter["_id"] = id

	res, err := r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"deleted_at": deletedAt.UTC(),
		"updated_at": deletedAt.UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrCopyNotFound
	}
	return nil
}

// EnsureIndexes creates the indexes the copy queries rely on. The compound
// book_id/copy_number index is unique so copy numbering stays consistent per
// book even under concurrent bulk creates.
func (r *CopyRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "book_id", Value: 1}, {Key: "copy_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "book_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "borrowed_by", Value: 1}}},
		{Keys: bson.D{{Key: "due_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
