package services

import (
	"context"

	"github.com/bloghub/apiserver/internal/events"
	"github.com/bloghub/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.PostView, int, error)
	GetView(ctx context.Context, id int) (types.PostView, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

// PostService encapsulates post use-cases.
type PostService struct {
	repo   PostRepository
	events *events.Publisher
}

func NewPostService(repo PostRepository, publisher *events.Publisher) *PostService {
	return &PostService{repo: repo, events: publisher}
}

func (s *PostService) List(ctx context.Context, offset, limit int) ([]types.PostView, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *PostService) GetView(ctx context.Context, id int) (types.PostView, error) {
	return s.repo.GetView(ctx, id)
}

func (s *PostService) Get(ctx context.Context, id int) (types.Post, error) {
	return s.repo.Get(ctx, id)
}

func (s *PostService) Create(ctx context.Context, post types.Post) (types.Post, error) {
	created, err := s.repo.Create(ctx, post)
	if err != nil {
		return types.Post{}, err
	}
	s.events.Emit(ctx, events.PostCreated, created)
	return created, nil
}

func (s *PostService) Update(ctx context.Context, post types.Post) (types.Post, error) {
	return s.repo.Update(ctx, post)
}

func (s *PostService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.Emit(ctx, events.PostDeleted, map[string]int{"id": id})
	return nil
}
