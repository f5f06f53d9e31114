package repository

import (
	"context"
	"errors"

	"quill/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post and collection data
// operations. Counter columns are only ever touched through the atomic
// increment/decrement methods.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, limit int, cursor *Cursor) ([]models.Post, *Cursor, error)
	ListByAuthors(ctx context.Context, authorIDs []uint, limit int, cursor *Cursor) ([]models.Post, *Cursor, error)
	PostIDsByAuthor(ctx context.Context, authorID uint) ([]uint, error)
	Delete(ctx context.Context, id uint) error

	IncrementComments(ctx context.Context, postID uint) error
	DecrementComments(ctx context.Context, postID uint, by int64) error
	IncrementReactions(ctx context.Context, postID uint) error
	DecrementReactions(ctx context.Context, postID uint, by int64) error

	CreateCollection(ctx context.Context, col *models.Collection) error
	GetCollectionByID(ctx context.Context, id uint) (*models.Collection, error)
	ListCollectionsByOwner(ctx context.Context, ownerID uint) ([]models.Collection, error)
	DeleteCollection(ctx context.Context, id uint) error
	IncrementCollectionPosts(ctx context.Context, collectionID uint) error
	DecrementCollectionPosts(ctx context.Context, collectionID uint, by int64) error
	DetachPostsFromCollection(ctx context.Context, collectionID uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, limit int, cursor *Cursor) ([]models.Post, *Cursor, error) {
	return r.listPosts(ctx, r.db.WithContext(ctx).Where("author_id = ?", authorID), limit, cursor)
}

func (r *postRepository) ListByAuthors(ctx context.Context, authorIDs []uint, limit int, cursor *Cursor) ([]models.Post, *Cursor, error) {
	if len(authorIDs) == 0 {
		return nil, nil, nil
	}
	return r.listPosts(ctx, r.db.WithContext(ctx).Where("author_id IN ?", authorIDs), limit, cursor)
}

func (r *postRepository) listPosts(ctx context.Context, q *gorm.DB, limit int, cursor *Cursor) ([]models.Post, *Cursor, error) {
	var posts []models.Post
	q = q.Preload("Author").
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	q = applyCursor(q, "created_at", cursor)
	if err := q.Find(&posts).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}

	if len(posts) <= limit {
		return posts, nil, nil
	}
	posts = posts[:limit]
	last := posts[len(posts)-1]
	return posts, &Cursor{Time: last.CreatedAt, ID: last.ID}, nil
}

func (r *postRepository) PostIDsByAuthor(ctx context.Context, authorID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("author_id = ?", authorID).
		Pluck("id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Counter updates are expressed as atomic SQL so concurrent writers cannot
// race a read-modify-write. Decrements are clamped at zero to tolerate drift
// rather than going negative.

func (r *postRepository) IncrementComments(ctx context.Context, postID uint) error {
	return r.bump(ctx, &models.Post{}, postID, "comments_count", 1)
}

func (r *postRepository) DecrementComments(ctx context.Context, postID uint, by int64) error {
	return r.drop(ctx, &models.Post{}, postID, "comments_count", by)
}

func (r *postRepository) IncrementReactions(ctx context.Context, postID uint) error {
	return r.bump(ctx, &models.Post{}, postID, "reactions_count", 1)
}

func (r *postRepository) DecrementReactions(ctx context.Context, postID uint, by int64) error {
	return r.drop(ctx, &models.Post{}, postID, "reactions_count", by)
}

func (r *postRepository) bump(ctx context.Context, model interface{}, id uint, column string, by int64) error {
	if err := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", by)).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) drop(ctx context.Context, model interface{}, id uint, column string, by int64) error {
	if by <= 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr("CASE WHEN "+column+" >= ? THEN "+column+" - ? ELSE 0 END", by, by)).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) CreateCollection(ctx context.Context, col *models.Collection) error {
	if err := r.db.WithContext(ctx).Create(col).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetCollectionByID(ctx context.Context, id uint) (*models.Collection, error) {
	var col models.Collection
	if err := r.db.WithContext(ctx).First(&col, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Collection", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &col, nil
}

func (r *postRepository) ListCollectionsByOwner(ctx context.Context, ownerID uint) ([]models.Collection, error) {
	var cols []models.Collection
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&cols).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return cols, nil
}

func (r *postRepository) DeleteCollection(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Collection{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) IncrementCollectionPosts(ctx context.Context, collectionID uint) error {
	return r.bump(ctx, &models.Collection{}, collectionID, "posts_count", 1)
}

func (r *postRepository) DecrementCollectionPosts(ctx context.Context, collectionID uint, by int64) error {
	return r.drop(ctx, &models.Collection{}, collectionID, "posts_count", by)
}

// DetachPostsFromCollection clears collection membership before the
// collection row itself is deleted.
func (r *postRepository) DetachPostsFromCollection(ctx context.Context, collectionID uint) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("collection_id = ?", collectionID).
		Update("collection_id", nil).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
