package service

import (
	"context"
	"strings"

	"quill/internal/models"
	"quill/internal/repository"
)

const maxPostBodyLen = 10000

// PostService provides post, comment, reaction, and collection business
// logic. Comment and reaction mutations keep the denormalized counters on
// the post in step via atomic column updates.
type PostService struct {
	postRepo     repository.PostRepository
	commentRepo  repository.CommentRepository
	reactionRepo repository.ReactionRepository
	friendRepo   repository.FriendRepository
	blockRepo    repository.BlockRepository
	notifier     *NotificationService
}

// NewPostService returns a new PostService.
func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	reactionRepo repository.ReactionRepository,
	friendRepo repository.FriendRepository,
	blockRepo repository.BlockRepository,
	notifier *NotificationService,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		commentRepo:  commentRepo,
		reactionRepo: reactionRepo,
		friendRepo:   friendRepo,
		blockRepo:    blockRepo,
		notifier:     notifier,
	}
}

// PostPage is one page of posts, newest first.
type PostPage struct {
	Page           []models.Post `json:"page"`
	IsDone         bool          `json:"is_done"`
	ContinueCursor string        `json:"continue_cursor"`
}

// CommentPage is one page of a post's comments.
type CommentPage struct {
	Page           []models.Comment `json:"page"`
	IsDone         bool             `json:"is_done"`
	ContinueCursor string           `json:"continue_cursor"`
}

// CreatePostInput is the input for creating a post.
type CreatePostInput struct {
	AuthorID     uint
	Body         string
	ImageID      *uint
	CollectionID *uint
}

// CreatePost creates a post, optionally inside one of the author's
// collections.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Body = strings.TrimSpace(in.Body)
	if in.Body == "" && in.ImageID == nil {
		return nil, models.NewValidationError("Post must have a body or an image")
	}
	if len(in.Body) > maxPostBodyLen {
		return nil, models.NewValidationError("Post body too long (max 10000 characters)")
	}

	if in.CollectionID != nil {
		col, err := s.postRepo.GetCollectionByID(ctx, *in.CollectionID)
		if err != nil {
			return nil, err
		}
		if col.OwnerID != in.AuthorID {
			return nil, models.NewUnauthorizedError("You can only post into your own collections")
		}
	}

	post := &models.Post{
		AuthorID:     in.AuthorID,
		Body:         in.Body,
		ImageID:      in.ImageID,
		CollectionID: in.CollectionID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	if in.CollectionID != nil {
		if err := s.postRepo.IncrementCollectionPosts(ctx, *in.CollectionID); err != nil {
			return nil, err
		}
	}
	return post, nil
}

// GetPost returns a post if the viewer is allowed to see it: the author,
// or a friend of the author with no block in either direction.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPostVisible(ctx, post, viewerID); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) checkPostVisible(ctx context.Context, post *models.Post, viewerID uint) error {
	if post.AuthorID == viewerID {
		return nil
	}
	blocked, err := s.blockRepo.ExistsEither(ctx, post.AuthorID, viewerID)
	if err != nil {
		return err
	}
	if blocked {
		return models.NewNotFoundError("Post", post.ID)
	}
	friends, err := s.friendRepo.AreFriends(ctx, viewerID, post.AuthorID)
	if err != nil {
		return err
	}
	if !friends {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

// GetFeed returns one page of posts by the user and their friends, newest
// first. Authors with a block in either direction are filtered out.
func (s *PostService) GetFeed(ctx context.Context, userID uint, limit int, cursorStr string) (*PostPage, error) {
	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}

	friendIDs, err := s.friendRepo.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	blockedIDs, err := s.blockRepo.BlockedIDsEither(ctx, userID)
	if err != nil {
		return nil, err
	}
	blocked := make(map[uint]struct{}, len(blockedIDs))
	for _, id := range blockedIDs {
		blocked[id] = struct{}{}
	}

	authorIDs := make([]uint, 0, len(friendIDs)+1)
	authorIDs = append(authorIDs, userID)
	for _, id := range friendIDs {
		if _, ok := blocked[id]; !ok {
			authorIDs = append(authorIDs, id)
		}
	}

	posts, next, err := s.postRepo.ListByAuthors(ctx, authorIDs, limit, cursor)
	if err != nil {
		return nil, err
	}

	page := &PostPage{Page: posts, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// GetUserPosts returns one page of a single author's posts, subject to the
// same visibility rules as GetPost.
func (s *PostService) GetUserPosts(ctx context.Context, authorID, viewerID uint, limit int, cursorStr string) (*PostPage, error) {
	if authorID != viewerID {
		blocked, err := s.blockRepo.ExistsEither(ctx, authorID, viewerID)
		if err != nil {
			return nil, err
		}
		friends, err := s.friendRepo.AreFriends(ctx, viewerID, authorID)
		if err != nil {
			return nil, err
		}
		if blocked || !friends {
			return &PostPage{Page: []models.Post{}, IsDone: true}, nil
		}
	}

	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}
	posts, next, err := s.postRepo.ListByAuthor(ctx, authorID, limit, cursor)
	if err != nil {
		return nil, err
	}

	page := &PostPage{Page: posts, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// AddComment creates a comment and increments the post's comment counter.
// The post author is notified, and when the comment replies to another
// comment its author is notified too.
func (s *PostService) AddComment(ctx context.Context, postID, authorID uint, body string, replyToID *uint) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.NewValidationError("Comment body is required")
	}
	if len(body) > maxPostBodyLen {
		return nil, models.NewValidationError("Comment body too long")
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPostVisible(ctx, post, authorID); err != nil {
		return nil, err
	}

	var parent *models.Comment
	if replyToID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *replyToID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, models.NewValidationError("Reply target belongs to a different post")
		}
	}

	comment := &models.Comment{
		PostID:    postID,
		AuthorID:  authorID,
		Body:      body,
		ReplyToID: replyToID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	if err := s.postRepo.IncrementComments(ctx, postID); err != nil {
		return nil, err
	}

	params := map[string]interface{}{
		"post_id":    postID,
		"comment_id": comment.ID,
	}
	if err := s.notifier.Notify(ctx, post.AuthorID, authorID, models.NotificationPostCommented, params); err != nil {
		return nil, err
	}
	if parent != nil && parent.AuthorID != post.AuthorID {
		if err := s.notifier.Notify(ctx, parent.AuthorID, authorID, models.NotificationCommentReplied, params); err != nil {
			return nil, err
		}
	}
	return comment, nil
}

// DeleteComment deletes a comment and decrements the post's counter. The
// comment author and the post author may both delete.
func (s *PostService) DeleteComment(ctx context.Context, commentID, requesterID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	post, err := s.postRepo.GetByID(ctx, comment.PostID)
	if err != nil {
		return err
	}
	if comment.AuthorID != requesterID && post.AuthorID != requesterID {
		return models.NewUnauthorizedError("You cannot delete this comment")
	}

	if err := s.commentRepo.Delete(ctx, commentID); err != nil {
		return err
	}
	return s.postRepo.DecrementComments(ctx, comment.PostID, 1)
}

// GetComments returns one page of a post's comments, oldest last.
func (s *PostService) GetComments(ctx context.Context, postID, viewerID uint, limit int, cursorStr string) (*CommentPage, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPostVisible(ctx, post, viewerID); err != nil {
		return nil, err
	}

	cursor, err := repository.DecodeCursor(cursorStr)
	if err != nil {
		return nil, err
	}
	comments, next, err := s.commentRepo.ListByPost(ctx, postID, limit, cursor)
	if err != nil {
		return nil, err
	}

	page := &CommentPage{Page: comments, IsDone: next == nil}
	if next != nil {
		page.ContinueCursor = next.Encode()
	}
	return page, nil
}

// React sets the caller's reaction on a post. A second reaction by the same
// user replaces nothing and does not double-count: the counter is bumped
// only when a row was actually inserted.
func (s *PostService) React(ctx context.Context, postID, userID uint, emoji string) error {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return models.NewValidationError("Emoji is required")
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.checkPostVisible(ctx, post, userID); err != nil {
		return err
	}

	created, err := s.reactionRepo.Create(ctx, &models.Reaction{
		PostID: postID,
		UserID: userID,
		Emoji:  emoji,
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if err := s.postRepo.IncrementReactions(ctx, postID); err != nil {
		return err
	}

	return s.notifier.Notify(ctx, post.AuthorID, userID, models.NotificationPostReaction, map[string]interface{}{
		"post_id": postID,
		"emoji":   emoji,
	})
}

// Unreact removes the caller's reaction from a post. Removing a reaction
// that does not exist is a no-op and leaves the counter alone.
func (s *PostService) Unreact(ctx context.Context, postID, userID uint) error {
	reaction, err := s.reactionRepo.Get(ctx, postID, userID)
	if err != nil {
		return err
	}
	if reaction == nil {
		return nil
	}

	deleted, err := s.reactionRepo.Delete(ctx, reaction.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	return s.postRepo.DecrementReactions(ctx, postID, 1)
}

// CreateCollection creates an empty collection for the caller.
func (s *PostService) CreateCollection(ctx context.Context, ownerID uint, name string) (*models.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("Collection name is required")
	}

	col := &models.Collection{OwnerID: ownerID, Name: name}
	if err := s.postRepo.CreateCollection(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

// GetCollections lists the caller's collections.
func (s *PostService) GetCollections(ctx context.Context, ownerID uint) ([]models.Collection, error) {
	return s.postRepo.ListCollectionsByOwner(ctx, ownerID)
}

// DeleteCollection deletes a collection the caller owns. Posts inside it
// survive; they are detached from the collection first.
func (s *PostService) DeleteCollection(ctx context.Context, collectionID, requesterID uint) error {
	col, err := s.postRepo.GetCollectionByID(ctx, collectionID)
	if err != nil {
		return err
	}
	if col.OwnerID != requesterID {
		return models.NewUnauthorizedError("You can only delete your own collections")
	}

	if err := s.postRepo.DetachPostsFromCollection(ctx, collectionID); err != nil {
		return err
	}
	return s.postRepo.DeleteCollection(ctx, collectionID)
}
