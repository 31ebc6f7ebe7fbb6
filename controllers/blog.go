package controllers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/psicanalise-online/platform/services"
	"github.com/psicanalise-online/platform/utils"
)

func (h *Handler) ListPosts(c *fiber.Ctx) error {
	page, err := h.Blog.List(c.UserContext(), c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(page)
}

func (h *Handler) GetPost(c *fiber.Ctx) error {
	post, err := h.Blog.GetBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(post)
}

// CreatePost takes a multipart form with an optional "cover" image.
func (h *Handler) CreatePost(c *fiber.Ctx) error {
	cl, err := caller(c)
	if err != nil {
		return h.fail(c, err)
	}
	var in services.BlogPostInput
	if err := parseBody(c, &in); err != nil {
		return h.fail(c, err)
	}

	var cover io.Reader
	if header, err := c.FormFile("cover"); err == nil {
		file, err := header.Open()
		if err != nil {
			return h.fail(c, utils.NewValidation("cannot read cover image"))
		}
		defer file.Close()
		cover = file
	}

	post, err := h.Blog.Create(c.UserContext(), cl, in, cover)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}
