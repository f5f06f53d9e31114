package service

import (
	"context"
	"log/slog"
	"strings"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/repository"
	"quill/internal/storage"
)

// ModerationService owns blocking, reporting, and the deletion cascades.
//
// The store gives us per-statement atomicity only, so each cascade is an
// ordered pipeline of idempotent steps: a crash mid-cascade leaves partial
// state, and re-running the whole cascade from the top completes it. Every
// step deletes-if-exists, so a re-run never fails on already-removed rows.
type ModerationService struct {
	userRepo     repository.UserRepository
	friendRepo   repository.FriendRepository
	chatRepo     repository.ChatRepository
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	reactionRepo repository.ReactionRepository
	notifRepo    repository.NotificationRepository
	blockRepo    repository.BlockRepository
	reportRepo   repository.ReportRepository
	letterRepo   repository.LetterRepository
	blobs        storage.BlobStore
	notifier     *NotificationService
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	userRepo repository.UserRepository,
	friendRepo repository.FriendRepository,
	chatRepo repository.ChatRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	reactionRepo repository.ReactionRepository,
	notifRepo repository.NotificationRepository,
	blockRepo repository.BlockRepository,
	reportRepo repository.ReportRepository,
	letterRepo repository.LetterRepository,
	blobs storage.BlobStore,
	notifier *NotificationService,
) *ModerationService {
	return &ModerationService{
		userRepo:     userRepo,
		friendRepo:   friendRepo,
		chatRepo:     chatRepo,
		postRepo:     postRepo,
		commentRepo:  commentRepo,
		reactionRepo: reactionRepo,
		notifRepo:    notifRepo,
		blockRepo:    blockRepo,
		reportRepo:   reportRepo,
		letterRepo:   letterRepo,
		blobs:        blobs,
		notifier:     notifier,
	}
}

// step runs one cascade step, records its outcome, and returns its error.
func step(cascade, name string, fn func() error) error {
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	middleware.CascadeSteps.WithLabelValues(cascade, name, outcome).Inc()
	return err
}

// BlockUser blocks target on behalf of blocker. The block severs the
// friendship, pending requests, and all comments and reactions either user
// left on the other's posts. Conversations and messages between the two are
// deliberately left untouched.
func (s *ModerationService) BlockUser(ctx context.Context, blockerID, targetID uint) error {
	if blockerID == targetID {
		return models.NewValidationError("Cannot block yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return err
	}

	exists, err := s.blockRepo.Exists(ctx, blockerID, targetID)
	if err != nil {
		return err
	}
	if exists {
		return models.NewConflictError("User is already blocked")
	}

	const cascade = "block_user"

	if err := step(cascade, "create_block", func() error {
		return s.blockRepo.Create(ctx, &models.UserBlock{BlockerID: blockerID, BlockedID: targetID})
	}); err != nil {
		return err
	}

	if err := step(cascade, "notify_target", func() error {
		return s.notifier.Notify(ctx, targetID, blockerID, models.NotificationUserBlocked, nil)
	}); err != nil {
		return err
	}

	if err := step(cascade, "delete_friendship", func() error {
		return s.friendRepo.DeleteFriendshipPair(ctx, blockerID, targetID)
	}); err != nil {
		return err
	}

	if err := step(cascade, "delete_requests", func() error {
		return s.friendRepo.DeleteRequestsBetween(ctx, blockerID, targetID)
	}); err != nil {
		return err
	}

	// Scrub each direction: the target's activity on the blocker's posts,
	// then the blocker's activity on the target's posts.
	if err := step(cascade, "scrub_target_activity", func() error {
		return s.scrubActivityOnOwner(ctx, targetID, blockerID)
	}); err != nil {
		return err
	}
	return step(cascade, "scrub_blocker_activity", func() error {
		return s.scrubActivityOnOwner(ctx, blockerID, targetID)
	})
}

// scrubActivityOnOwner deletes authorID's comments and reactions on
// ownerID's posts and corrects the post counters. Tallies are taken before
// deletion and decrements are grouped per post.
func (s *ModerationService) scrubActivityOnOwner(ctx context.Context, authorID, ownerID uint) error {
	commentTallies, err := s.commentRepo.TallyByAuthorOnOwner(ctx, authorID, ownerID)
	if err != nil {
		return err
	}
	if err := s.commentRepo.DeleteByAuthorOnOwner(ctx, authorID, ownerID); err != nil {
		return err
	}
	for _, t := range commentTallies {
		if err := s.postRepo.DecrementComments(ctx, t.PostID, t.Count); err != nil {
			return err
		}
	}

	reactionTallies, err := s.reactionRepo.TallyByAuthorOnOwner(ctx, authorID, ownerID)
	if err != nil {
		return err
	}
	if err := s.reactionRepo.DeleteByAuthorOnOwner(ctx, authorID, ownerID); err != nil {
		return err
	}
	for _, t := range reactionTallies {
		if err := s.postRepo.DecrementReactions(ctx, t.PostID, t.Count); err != nil {
			return err
		}
	}
	return nil
}

// GetBlockedUsers lists the users the caller has blocked.
func (s *ModerationService) GetBlockedUsers(ctx context.Context, blockerID uint) ([]models.UserBlock, error) {
	return s.blockRepo.ListByBlocker(ctx, blockerID)
}

// ReportUser files a moderation report against a user. At most one open
// report per (reporter, reported) pair.
func (s *ModerationService) ReportUser(ctx context.Context, reporterID, reportedID uint, reason string, attachmentID *uint) (*models.UserReport, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("Report reason is required")
	}
	if reporterID == reportedID {
		return nil, models.NewValidationError("Cannot report yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, reportedID); err != nil {
		return nil, err
	}

	open, err := s.reportRepo.GetOpenUserReport(ctx, reporterID, reportedID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, models.NewConflictError("You already have an open report against this user")
	}

	report := &models.UserReport{
		ReporterID:     reporterID,
		ReportedUserID: reportedID,
		Reason:         reason,
		AttachmentID:   attachmentID,
	}
	if err := s.reportRepo.CreateUserReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ReportPost files a moderation report against a post. At most one open
// report per (reporter, post) pair.
func (s *ModerationService) ReportPost(ctx context.Context, reporterID, postID uint, reason string, attachmentID *uint) (*models.PostReport, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("Report reason is required")
	}
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID == reporterID {
		return nil, models.NewValidationError("Cannot report your own post")
	}

	open, err := s.reportRepo.GetOpenPostReport(ctx, reporterID, postID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, models.NewConflictError("You already have an open report against this post")
	}

	report := &models.PostReport{
		ReporterID:   reporterID,
		PostID:       postID,
		Reason:       reason,
		AttachmentID: attachmentID,
	}
	if err := s.reportRepo.CreatePostReport(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListOpenUserReports returns one page of open user reports. Admin only.
func (s *ModerationService) ListOpenUserReports(ctx context.Context, adminID uint, limit int, cursorStr string) ([]models.UserReport, string, bool, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, "", false, err
	}
	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", false, err
	}
	reports, next, err := s.reportRepo.ListOpenUserReports(ctx, limit, cursor)
	if err != nil {
		return nil, "", false, err
	}
	if next == nil {
		return reports, "", true, nil
	}
	return reports, next.Encode(), false, nil
}

// ListOpenPostReports returns one page of open post reports. Admin only.
func (s *ModerationService) ListOpenPostReports(ctx context.Context, adminID uint, limit int, cursorStr string) ([]models.PostReport, string, bool, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, "", false, err
	}
	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", false, err
	}
	reports, next, err := s.reportRepo.ListOpenPostReports(ctx, limit, cursor)
	if err != nil {
		return nil, "", false, err
	}
	if next == nil {
		return reports, "", true, nil
	}
	return reports, next.Encode(), false, nil
}

// ResolveUserReport marks a user report resolved without further action.
// Admin only.
func (s *ModerationService) ResolveUserReport(ctx context.Context, reportID, adminID uint) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if _, err := s.reportRepo.GetUserReportByID(ctx, reportID); err != nil {
		return err
	}
	return s.reportRepo.ResolveUserReport(ctx, reportID)
}

// ResolvePostReport marks a post report resolved without further action.
// Admin only.
func (s *ModerationService) ResolvePostReport(ctx context.Context, reportID, adminID uint) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if _, err := s.reportRepo.GetPostReportByID(ctx, reportID); err != nil {
		return err
	}
	return s.reportRepo.ResolvePostReport(ctx, reportID)
}

// DeletePost deletes a post the requester owns, together with its comments,
// reactions, image blob, and collection membership. Open reports against
// the post are resolved rather than orphaned.
func (s *ModerationService) DeletePost(ctx context.Context, postID, requesterID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != requesterID {
		requester, err := s.userRepo.GetByID(ctx, requesterID)
		if err != nil {
			return err
		}
		if !requester.IsAdmin {
			return models.NewUnauthorizedError("You can only delete your own posts")
		}
	}
	return s.deletePostCascade(ctx, post)
}

// DeletePostAndResolveReport deletes the reported post and resolves the
// report that prompted it. Admin only.
func (s *ModerationService) DeletePostAndResolveReport(ctx context.Context, reportID, adminID uint) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	report, err := s.reportRepo.GetPostReportByID(ctx, reportID)
	if err != nil {
		return err
	}

	post, err := s.postRepo.GetByID(ctx, report.PostID)
	if err == nil {
		if cerr := s.deletePostCascade(ctx, post); cerr != nil {
			return cerr
		}
	} else if models.StatusCode(err) != 404 {
		return err
	}
	// deletePostCascade resolves every open report on the post, including
	// this one, but resolve explicitly in case the post was already gone.
	return s.reportRepo.ResolvePostReport(ctx, reportID)
}

func (s *ModerationService) deletePostCascade(ctx context.Context, post *models.Post) error {
	const cascade = "delete_post"

	if err := step(cascade, "delete_comments", func() error {
		return s.commentRepo.DeleteByPost(ctx, post.ID)
	}); err != nil {
		return err
	}
	if err := step(cascade, "delete_reactions", func() error {
		return s.reactionRepo.DeleteByPost(ctx, post.ID)
	}); err != nil {
		return err
	}
	if post.CollectionID != nil {
		if err := step(cascade, "decrement_collection", func() error {
			return s.postRepo.DecrementCollectionPosts(ctx, *post.CollectionID, 1)
		}); err != nil {
			return err
		}
	}
	if post.ImageID != nil {
		if err := step(cascade, "delete_image", func() error {
			s.deleteImageBlob(ctx, *post.ImageID)
			return nil
		}); err != nil {
			return err
		}
	}
	if err := step(cascade, "resolve_reports", func() error {
		return s.reportRepo.ResolvePostReportsByPost(ctx, post.ID)
	}); err != nil {
		return err
	}
	return step(cascade, "delete_post", func() error {
		return s.postRepo.Delete(ctx, post.ID)
	})
}

// DeleteAccount removes a user and every record that references them. The
// order matters: dependents go first, then the rows they reference, and
// the user row last so a re-run after a partial failure can still find
// everything through the user id.
func (s *ModerationService) DeleteAccount(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	const cascade = "delete_account"

	// Owned posts and everything hanging off them.
	if err := step(cascade, "delete_posts", func() error {
		postIDs, err := s.postRepo.PostIDsByAuthor(ctx, userID)
		if err != nil {
			return err
		}
		for _, id := range postIDs {
			post, err := s.postRepo.GetByID(ctx, id)
			if err != nil {
				if models.StatusCode(err) == 404 {
					continue
				}
				return err
			}
			if err := s.deletePostCascade(ctx, post); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	// Comments and reactions left on other users' posts, with counter
	// correction grouped per post.
	if err := step(cascade, "scrub_comments", func() error {
		tallies, err := s.commentRepo.TallyByAuthor(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.commentRepo.DeleteByAuthor(ctx, userID); err != nil {
			return err
		}
		for _, t := range tallies {
			if err := s.postRepo.DecrementComments(ctx, t.PostID, t.Count); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := step(cascade, "scrub_reactions", func() error {
		tallies, err := s.reactionRepo.TallyByAuthor(ctx, userID)
		if err != nil {
			return err
		}
		if err := s.reactionRepo.DeleteByAuthor(ctx, userID); err != nil {
			return err
		}
		for _, t := range tallies {
			if err := s.postRepo.DecrementReactions(ctx, t.PostID, t.Count); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	// Collections: posts were already deleted above, so just the rows.
	if err := step(cascade, "delete_collections", func() error {
		cols, err := s.postRepo.ListCollectionsByOwner(ctx, userID)
		if err != nil {
			return err
		}
		for _, col := range cols {
			if err := s.postRepo.DetachPostsFromCollection(ctx, col.ID); err != nil {
				return err
			}
			if err := s.postRepo.DeleteCollection(ctx, col.ID); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	// Social graph.
	if err := step(cascade, "delete_friend_requests", func() error {
		return s.friendRepo.DeleteAllRequestsForUser(ctx, userID)
	}); err != nil {
		return err
	}
	if err := step(cascade, "delete_friendships", func() error {
		return s.friendRepo.DeleteAllForUser(ctx, userID)
	}); err != nil {
		return err
	}
	if err := step(cascade, "delete_blocks", func() error {
		return s.blockRepo.DeleteAllForUser(ctx, userID)
	}); err != nil {
		return err
	}

	// Conversations the user participates in, messages included.
	if err := step(cascade, "delete_conversations", func() error {
		groupIDs, err := s.chatRepo.GroupIDsForUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, gid := range groupIDs {
			imageIDs, err := s.chatRepo.ListMessageImageIDs(ctx, gid)
			if err != nil {
				return err
			}
			for _, id := range imageIDs {
				s.deleteImageBlob(ctx, id)
			}
			if err := s.chatRepo.DeleteMessagesByGroup(ctx, gid); err != nil {
				return err
			}
			if err := s.chatRepo.DeleteConversationRows(ctx, gid); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := step(cascade, "delete_notifications", func() error {
		return s.notifier.DeleteAll(ctx, userID)
	}); err != nil {
		return err
	}

	if err := step(cascade, "delete_letters", func() error {
		return s.letterRepo.DeleteForUser(ctx, userID)
	}); err != nil {
		return err
	}

	// Reports by or about the user, with attachment blobs.
	if err := step(cascade, "delete_reports", func() error {
		attachmentIDs, err := s.reportRepo.ReportAttachmentIDs(ctx, userID)
		if err != nil {
			return err
		}
		for _, id := range attachmentIDs {
			s.deleteImageBlob(ctx, id)
		}
		return s.reportRepo.DeleteReportsForUser(ctx, userID)
	}); err != nil {
		return err
	}

	// Profile avatar.
	if user.AvatarID != nil {
		if err := step(cascade, "delete_avatar", func() error {
			s.deleteImageBlob(ctx, *user.AvatarID)
			return nil
		}); err != nil {
			return err
		}
	}

	// Auth records last-but-one, then the user row itself.
	if err := step(cascade, "delete_tokens", func() error {
		return s.userRepo.DeleteTokensForUser(ctx, userID)
	}); err != nil {
		return err
	}
	return step(cascade, "delete_user", func() error {
		return s.userRepo.Delete(ctx, userID)
	})
}

// DeleteUserAndResolveReport deletes the reported user's account and
// resolves the report that prompted it. Admin only.
func (s *ModerationService) DeleteUserAndResolveReport(ctx context.Context, reportID, adminID uint) error {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	report, err := s.reportRepo.GetUserReportByID(ctx, reportID)
	if err != nil {
		return err
	}

	if err := s.DeleteAccount(ctx, report.ReportedUserID); err != nil {
		if models.StatusCode(err) != 404 {
			return err
		}
	}
	// The account cascade removes the reported user's reports, but this
	// report belongs to the reporter; resolve it explicitly.
	return s.reportRepo.ResolveUserReport(ctx, reportID)
}

func (s *ModerationService) requireAdmin(ctx context.Context, userID uint) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsAdmin {
		return models.NewUnauthorizedError("Admin access required")
	}
	return nil
}

// deleteImageBlob removes an image row and its blob. Best-effort: cascades
// must finish even when blob storage misbehaves.
func (s *ModerationService) deleteImageBlob(ctx context.Context, imageID uint) {
	img, err := s.userRepo.GetImageByID(ctx, imageID)
	if err != nil {
		return
	}
	if err := s.blobs.Delete(ctx, img.StorageID); err != nil {
		slog.WarnContext(ctx, "failed to delete image blob", "image_id", imageID, "err", err)
	}
	_ = s.userRepo.DeleteImage(ctx, imageID)
}
