package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/repository"
	"github.com/psicanalise-online/platform/utils"
)

const (
	defaultBlogLimit = 10
	maxBlogLimit     = 50
	slugAttempts     = 5
)

type BlogService struct {
	store    repository.Store
	uploader MediaUploader
	now      func() time.Time
	log      *zap.Logger
}

func NewBlogService(store repository.Store, uploader MediaUploader, log *zap.Logger) *BlogService {
	return &BlogService{store: store, uploader: uploader, now: time.Now, log: log}
}

type BlogPage struct {
	Posts  []models.BlogPost `json:"posts"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func (s *BlogService) List(ctx context.Context, limit, offset int) (*BlogPage, error) {
	limit, offset = normalizePage(limit, offset, defaultBlogLimit, maxBlogLimit)
	posts, total, err := s.store.ListBlogPosts(ctx, limit, offset)
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	if posts == nil {
		posts = []models.BlogPost{}
	}
	return &BlogPage{Posts: posts, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *BlogService) GetBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	post, err := s.store.GetBlogPostBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, storeErr(err, "post not found")
	}
	return post, nil
}

type BlogPostInput struct {
	Title   string `json:"title" form:"title"`
	Excerpt string `json:"excerpt" form:"excerpt"`
	Content string `json:"content" form:"content"`
	Draft   bool   `json:"draft" form:"draft"`
}

// Create publishes a post. cover may be nil.
func (s *BlogService) Create(ctx context.Context, caller Caller, in BlogPostInput, cover io.Reader) (*models.BlogPost, error) {
	if err := Authorize(caller, Resource{Kind: ResourceBlog}, ActionWrite); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, utils.NewValidation("title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, utils.NewValidation("content is required")
	}
	base := utils.Slugify(title)
	if base == "" {
		base = "post"
	}

	post := &models.BlogPost{
		AuthorID: caller.UserID,
		Title:    title,
		Excerpt:  strings.TrimSpace(in.Excerpt),
		Content:  in.Content,
	}
	if !in.Draft {
		now := s.now()
		post.PublishedAt = &now
	}

	if cover != nil {
		if s.uploader == nil {
			return nil, utils.NewValidation("image uploads are not available")
		}
		url, err := s.uploader.Upload(ctx, cover, "blog", base)
		if err != nil {
			return nil, utils.NewUpstream("failed to upload cover image", err)
		}
		post.CoverImageURL = url
	}

	for attempt := 1; ; attempt++ {
		switch {
		case attempt == 1:
			post.Slug = base
		case attempt <= slugAttempts:
			post.Slug = fmt.Sprintf("%s-%d", base, attempt)
		default:
			post.Slug = base + "-" + uuid.NewString()[:8]
		}
		err := s.store.CreateBlogPost(ctx, post)
		if err == nil {
			return post, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt > slugAttempts {
			return nil, utils.NewInternal(err)
		}
		post.ID = 0
	}
}
