package repository

import (
	"context"
	"errors"

	"quill/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostTally is a per-post row count, used by cascades to group counter
// corrections by target post and keep the number of patch calls small.
type PostTally struct {
	PostID uint
	Count  int64
}

// CommentRepository defines the interface for comment data operations.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, limit int, cursor *Cursor) ([]models.Comment, *Cursor, error)
	Delete(ctx context.Context, id uint) error
	DeleteByPost(ctx context.Context, postID uint) error
	TallyByAuthor(ctx context.Context, authorID uint) ([]PostTally, error)
	DeleteByAuthor(ctx context.Context, authorID uint) error
	TallyByAuthorOnOwner(ctx context.Context, authorID, ownerID uint) ([]PostTally, error)
	DeleteByAuthorOnOwner(ctx context.Context, authorID, ownerID uint) error
}

// ReactionRepository defines the interface for reaction data operations.
type ReactionRepository interface {
	Create(ctx context.Context, reaction *models.Reaction) (bool, error)
	GetByID(ctx context.Context, id uint) (*models.Reaction, error)
	Get(ctx context.Context, postID, userID uint) (*models.Reaction, error)
	Delete(ctx context.Context, id uint) (bool, error)
	DeleteByPost(ctx context.Context, postID uint) error
	TallyByAuthor(ctx context.Context, userID uint) ([]PostTally, error)
	DeleteByAuthor(ctx context.Context, userID uint) error
	TallyByAuthorOnOwner(ctx context.Context, userID, ownerID uint) ([]PostTally, error)
	DeleteByAuthorOnOwner(ctx context.Context, userID, ownerID uint) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, limit int, cursor *Cursor) ([]models.Comment, *Cursor, error) {
	var comments []models.Comment
	q := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Preload("Author").
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	q = applyCursor(q, "created_at", cursor)
	if err := q.Find(&comments).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}

	if len(comments) <= limit {
		return comments, nil, nil
	}
	comments = comments[:limit]
	last := comments[len(comments)-1]
	return comments, &Cursor{Time: last.CreatedAt, ID: last.ID}, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) DeleteByPost(ctx context.Context, postID uint) error {
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Delete(&models.Comment{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) TallyByAuthor(ctx context.Context, authorID uint) ([]PostTally, error) {
	return tally(ctx, r.db, "comments", "author_id = ?", authorID)
}

func (r *commentRepository) DeleteByAuthor(ctx context.Context, authorID uint) error {
	if err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Delete(&models.Comment{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) TallyByAuthorOnOwner(ctx context.Context, authorID, ownerID uint) ([]PostTally, error) {
	return tallyOnOwner(ctx, r.db, "comments", "author_id", authorID, ownerID)
}

func (r *commentRepository) DeleteByAuthorOnOwner(ctx context.Context, authorID, ownerID uint) error {
	return deleteOnOwner(ctx, r.db, &models.Comment{}, "author_id", authorID, ownerID)
}

// tally groups live rows of table by post_id for rows matching cond.
func tally(ctx context.Context, db *gorm.DB, table, cond string, arg uint) ([]PostTally, error) {
	var rows []PostTally
	if err := db.WithContext(ctx).
		Table(table).
		Select("post_id, COUNT(*) as count").
		Where(cond, arg).
		Group("post_id").
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

// tallyOnOwner groups live rows authored by authorID on posts owned by
// ownerID.
func tallyOnOwner(ctx context.Context, db *gorm.DB, table, authorColumn string, authorID, ownerID uint) ([]PostTally, error) {
	var rows []PostTally
	if err := db.WithContext(ctx).
		Table(table).
		Select(table+".post_id, COUNT(*) as count").
		Joins("JOIN posts ON posts.id = "+table+".post_id").
		Where(table+"."+authorColumn+" = ? AND posts.author_id = ?", authorID, ownerID).
		Group(table + ".post_id").
		Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func deleteOnOwner(ctx context.Context, db *gorm.DB, model interface{}, authorColumn string, authorID, ownerID uint) error {
	// Subquery keeps the delete portable across postgres and sqlite.
	sub := db.Model(&models.Post{}).Select("id").Where("author_id = ?", ownerID)
	if err := db.WithContext(ctx).
		Where(authorColumn+" = ? AND post_id IN (?)", authorID, sub).
		Delete(model).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates a new reaction repository
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

// Create inserts the reaction and reports whether a row was actually
// written. A duplicate (post, user) pair is absorbed so the caller can skip
// the counter increment.
func (r *reactionRepository) Create(ctx context.Context, reaction *models.Reaction) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(reaction)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *reactionRepository) GetByID(ctx context.Context, id uint) (*models.Reaction, error) {
	var reaction models.Reaction
	if err := r.db.WithContext(ctx).First(&reaction, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Reaction", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &reaction, nil
}

func (r *reactionRepository) Get(ctx context.Context, postID, userID uint) (*models.Reaction, error) {
	var reaction models.Reaction
	if err := r.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		First(&reaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &reaction, nil
}

// Delete removes the reaction and reports whether a row existed. Repeated
// deletes of the same id are no-ops, so counters are never decremented twice.
func (r *reactionRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Reaction{}, id)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *reactionRepository) DeleteByPost(ctx context.Context, postID uint) error {
	if err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Delete(&models.Reaction{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reactionRepository) TallyByAuthor(ctx context.Context, userID uint) ([]PostTally, error) {
	return tally(ctx, r.db, "reactions", "user_id = ?", userID)
}

func (r *reactionRepository) DeleteByAuthor(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Reaction{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reactionRepository) TallyByAuthorOnOwner(ctx context.Context, userID, ownerID uint) ([]PostTally, error) {
	return tallyOnOwner(ctx, r.db, "reactions", "user_id", userID, ownerID)
}

func (r *reactionRepository) DeleteByAuthorOnOwner(ctx context.Context, userID, ownerID uint) error {
	return deleteOnOwner(ctx, r.db, &models.Reaction{}, "user_id", userID, ownerID)
}
