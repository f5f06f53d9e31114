package repository

import (
	"context"
	"errors"

	"quill/internal/models"

	"gorm.io/gorm"
)

// BlockRepository defines the interface for block-row data operations.
type BlockRepository interface {
	Create(ctx context.Context, block *models.UserBlock) error
	Exists(ctx context.Context, blockerID, blockedID uint) (bool, error)
	ExistsEither(ctx context.Context, userID1, userID2 uint) (bool, error)
	ListByBlocker(ctx context.Context, blockerID uint) ([]models.UserBlock, error)
	BlockedIDsEither(ctx context.Context, userID uint) ([]uint, error)
	DeleteAllForUser(ctx context.Context, userID uint) error
}

// ReportRepository defines the interface for moderation-report data
// operations.
type ReportRepository interface {
	CreateUserReport(ctx context.Context, report *models.UserReport) error
	GetOpenUserReport(ctx context.Context, reporterID, reportedUserID uint) (*models.UserReport, error)
	GetUserReportByID(ctx context.Context, id uint) (*models.UserReport, error)
	ListOpenUserReports(ctx context.Context, limit int, cursor *Cursor) ([]models.UserReport, *Cursor, error)
	ResolveUserReport(ctx context.Context, id uint) error

	CreatePostReport(ctx context.Context, report *models.PostReport) error
	GetOpenPostReport(ctx context.Context, reporterID, postID uint) (*models.PostReport, error)
	GetPostReportByID(ctx context.Context, id uint) (*models.PostReport, error)
	ListOpenPostReports(ctx context.Context, limit int, cursor *Cursor) ([]models.PostReport, *Cursor, error)
	ResolvePostReport(ctx context.Context, id uint) error
	ResolvePostReportsByPost(ctx context.Context, postID uint) error

	ReportAttachmentIDs(ctx context.Context, userID uint) ([]uint, error)
	DeleteReportsForUser(ctx context.Context, userID uint) error
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) Create(ctx context.Context, block *models.UserBlock) error {
	if err := r.db.WithContext(ctx).Create(block).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *blockRepository) Exists(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// ExistsEither reports whether either user blocked the other. Content
// visibility checks must consult both directions.
func (r *blockRepository) ExistsEither(ctx context.Context, userID1, userID2 uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
			userID1, userID2, userID2, userID1).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *blockRepository) ListByBlocker(ctx context.Context, blockerID uint) ([]models.UserBlock, error) {
	var blocks []models.UserBlock
	if err := r.db.WithContext(ctx).
		Where("blocker_id = ?", blockerID).
		Preload("Blocked").
		Order("created_at DESC").
		Find(&blocks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return blocks, nil
}

// BlockedIDsEither returns every user id the given user has blocked or been
// blocked by, for feed filtering.
func (r *blockRepository) BlockedIDsEither(ctx context.Context, userID uint) ([]uint, error) {
	var blocks []models.UserBlock
	if err := r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Find(&blocks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	ids := make([]uint, 0, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == userID {
			ids = append(ids, b.BlockedID)
		} else {
			ids = append(ids, b.BlockerID)
		}
	}
	return ids, nil
}

func (r *blockRepository) DeleteAllForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Delete(&models.UserBlock{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) CreateUserReport(ctx context.Context, report *models.UserReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reportRepository) GetOpenUserReport(ctx context.Context, reporterID, reportedUserID uint) (*models.UserReport, error) {
	var report models.UserReport
	if err := r.db.WithContext(ctx).
		Where("reporter_id = ? AND reported_user_id = ? AND status = ?",
			reporterID, reportedUserID, models.ReportStatusOpen).
		First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &report, nil
}

func (r *reportRepository) GetUserReportByID(ctx context.Context, id uint) (*models.UserReport, error) {
	var report models.UserReport
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Report", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &report, nil
}

func (r *reportRepository) ListOpenUserReports(ctx context.Context, limit int, cursor *Cursor) ([]models.UserReport, *Cursor, error) {
	var reports []models.UserReport
	q := r.db.WithContext(ctx).
		Where("status = ?", models.ReportStatusOpen).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	q = applyCursor(q, "created_at", cursor)
	if err := q.Find(&reports).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	if len(reports) <= limit {
		return reports, nil, nil
	}
	reports = reports[:limit]
	last := reports[len(reports)-1]
	return reports, &Cursor{Time: last.CreatedAt, ID: last.ID}, nil
}

func (r *reportRepository) ResolveUserReport(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).
		Model(&models.UserReport{}).
		Where("id = ?", id).
		Update("status", models.ReportStatusResolved).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reportRepository) CreatePostReport(ctx context.Context, report *models.PostReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *reportRepository) GetOpenPostReport(ctx context.Context, reporterID, postID uint) (*models.PostReport, error) {
	var report models.PostReport
	if err := r.db.WithContext(ctx).
		Where("reporter_id = ? AND post_id = ? AND status = ?",
			reporterID, postID, models.ReportStatusOpen).
		First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &report, nil
}

func (r *reportRepository) GetPostReportByID(ctx context.Context, id uint) (*models.PostReport, error) {
	var report models.PostReport
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Report", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &report, nil
}

func (r *reportRepository) ListOpenPostReports(ctx context.Context, limit int, cursor *Cursor) ([]models.PostReport, *Cursor, error) {
	var reports []models.PostReport
	q := r.db.WithContext(ctx).
		Where("status = ?", models.ReportStatusOpen).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)
	q = applyCursor(q, "created_at", cursor)
	if err := q.Find(&reports).Error; err != nil {
		return nil, nil, models.NewInternalError(err)
	}
	if len(reports) <= limit {
		return reports, nil, nil
	}
	reports = reports[:limit]
	last := reports[len(reports)-1]
	return reports, &Cursor{Time: last.CreatedAt, ID: last.ID}, nil
}

func (r *reportRepository) ResolvePostReport(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).
		Model(&models.PostReport{}).
		Where("id = ?", id).
		Update("status", models.ReportStatusResolved).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ResolvePostReportsByPost closes every open report against a post once the
// post has been removed.
func (r *reportRepository) ResolvePostReportsByPost(ctx context.Context, postID uint) error {
	if err := r.db.WithContext(ctx).
		Model(&models.PostReport{}).
		Where("post_id = ? AND status = ?", postID, models.ReportStatusOpen).
		Update("status", models.ReportStatusResolved).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ReportAttachmentIDs returns attachment image ids of every report the user
// authored or is the target of, so the account cascade can delete the blobs.
func (r *reportRepository) ReportAttachmentIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.UserReport{}).
		Where("(reporter_id = ? OR reported_user_id = ?) AND attachment_id IS NOT NULL", userID, userID).
		Pluck("attachment_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	var postIDs []uint
	if err := r.db.WithContext(ctx).
		Model(&models.PostReport{}).
		Where("reporter_id = ? AND attachment_id IS NOT NULL", userID).
		Pluck("attachment_id", &postIDs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return append(ids, postIDs...), nil
}

func (r *reportRepository) DeleteReportsForUser(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Where("reporter_id = ? OR reported_user_id = ?", userID, userID).
		Delete(&models.UserReport{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).
		Where("reporter_id = ?", userID).
		Delete(&models.PostReport{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
