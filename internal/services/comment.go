package services

import (
	"context"

	"github.com/bloghub/apiserver/internal/events"
	"github.com/bloghub/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	ListByPost(ctx context.Context, postID, offset, limit int) ([]types.CommentView, int, error)
	GetView(ctx context.Context, id int) (types.CommentView, error)
	Get(ctx context.Context, id int) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, comment types.Comment) (types.Comment, error)
	Delete(ctx context.Context, id int) error
}

// postChecker is the slice of PostRepository the comment service needs to
// verify a parent post exists before creating a comment under it.
type postChecker interface {
	Get(ctx context.Context, id int) (types.Post, error)
}

// CommentService encapsulates comment use-cases.
type CommentService struct {
	repo   CommentRepository
	posts  postChecker
	events *events.Publisher
}

func NewCommentService(repo CommentRepository, posts PostRepository, publisher *events.Publisher) *CommentService {
	return &CommentService{repo: repo, posts: posts, events: publisher}
}

func (s *CommentService) ListByPost(ctx context.Context, postID, offset, limit int) ([]types.CommentView, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.ListByPost(ctx, postID, offset, limit)
}

func (s *CommentService) GetView(ctx context.Context, id int) (types.CommentView, error) {
	return s.repo.GetView(ctx, id)
}

func (s *CommentService) Get(ctx context.Context, id int) (types.Comment, error) {
	return s.repo.Get(ctx, id)
}

// Create verifies the parent post exists before persisting the comment.
// Returns store.ErrNotFound (from the post lookup) when the post is absent.
func (s *CommentService) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	if _, err := s.posts.Get(ctx, comment.PostID); err != nil {
		return types.Comment{}, err
	}

	created, err := s.repo.Create(ctx, comment)
	if err != nil {
		return types.Comment{}, err
	}
	s.events.Emit(ctx, events.CommentCreated, created)
	return created, nil
}

func (s *CommentService) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	return s.repo.Update(ctx, comment)
}

func (s *CommentService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.CommentDeleted, map[string]int{"id": id})
	return nil
}
