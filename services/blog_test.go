package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/psicanalise-online/platform/models"
	"github.com/psicanalise-online/platform/utils"
)

func TestCreateBlogPost(t *testing.T) {
	f := newFixture(t)
	_, pro := f.profile(t, models.RoleProfessional, "Dr. Luz", "luz@example.com")
	_, client := f.profile(t, models.RoleClient, "Ana", "ana@example.com")

	in := BlogPostInput{Title: "O que é Psicanálise?", Content: "Texto."}
	first, err := f.blog.Create(f.ctx, pro, in, nil)
	require.NoError(t, err)
	require.Equal(t, "o-que-e-psicanalise", first.Slug)
	require.NotNil(t, first.PublishedAt)

	second, err := f.blog.Create(f.ctx, pro, in, nil)
	require.NoError(t, err)
	require.Equal(t, "o-que-e-psicanalise-2", second.Slug)

	_, err = f.blog.Create(f.ctx, client, in, nil)
	require.Equal(t, utils.KindForbidden, utils.KindOf(err))

	_, err = f.blog.Create(f.ctx, pro, BlogPostInput{Title: " "}, nil)
	require.Equal(t, utils.KindValidation, utils.KindOf(err))

	_, err = f.blog.Create(f.ctx, pro, in, strings.NewReader("png"))
	require.Equal(t, utils.KindValidation, utils.KindOf(err))
}

func TestBlogCoverAndDrafts(t *testing.T) {
	f := newFixture(t)
	_, pro := f.profile(t, models.RoleProfessional, "Dr. Luz", "luz@example.com")
	blog := NewBlogService(f.store, fakeUploader{}, zap.NewNop())

	post, err := blog.Create(f.ctx, pro, BlogPostInput{Title: "Sonhos", Content: "..."}, strings.NewReader("png"))
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/blog/sonhos", post.CoverImageURL)

	_, err = blog.Create(f.ctx, pro, BlogPostInput{Title: "Rascunho", Content: "...", Draft: true}, nil)
	require.NoError(t, err)

	page, err := blog.List(f.ctx, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, 10, page.Limit)

	got, err := blog.GetBySlug(f.ctx, " SONHOS ")
	require.NoError(t, err)
	require.Equal(t, post.ID, got.ID)

	_, err = blog.GetBySlug(f.ctx, "rascunho")
	require.Equal(t, utils.KindNotFound, utils.KindOf(err))

	failing := NewBlogService(f.store, fakeUploader{err: errBoom}, zap.NewNop())
	_, err = failing.Create(f.ctx, pro, BlogPostInput{Title: "Outro", Content: "..."}, strings.NewReader("png"))
	require.Equal(t, utils.KindUpstream, utils.KindOf(err))
}
