package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/tweetshelf/app/bookmarks"
)

func NewHandler(service BookmarkService, generator FeedGenerator, version string) *Handler {
	return &Handler{
		service:   service,
		generator: generator,
		version:   version,
	}
}

func (h *Handler) GetGallery(c *gin.Context) {
	gallery, err := h.service.Gallery(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "gallery", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load gallery"})
		return
	}

	categories := make([]galleryCategoryView, 0, len(gallery))
	for _, section := range gallery {
		view := galleryCategoryView{categoryView: newCategoryView(section.Category)}
		view.Posts = make([]postView, 0, len(section.Posts))
		for _, p := range section.Posts {
			view.Posts = append(view.Posts, newPostView(p))
		}
		categories = append(categories, view)
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) GetCategoryFeed(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	section, err := h.service.CategoryPosts(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "category_feed", err)
		return
	}

	rss, err := h.generator.Run(section.Category, section.Posts)
	if err != nil {
		slog.Error("RSS generation failed", "category_id", id, "error", err)
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(section.Posts)))
	c.Header("X-Feed-Name", section.Name)

	c.String(http.StatusOK, rss)
}

func (h *Handler) AddCategory(c *gin.Context) {
	category, err := h.service.CreateCategory(c.Request.Context(), c.PostForm("name"))
	if err != nil {
		h.fail(c, "add_category", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  fmt.Sprintf("Category '%s' added", category.Name),
		"category": newCategoryView(*category),
	})
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(c.Request.Context(), id); err != nil {
		h.fail(c, "delete_category", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Category deleted"})
}

func (h *Handler) AddTweet(c *gin.Context) {
	req := bookmarks.SaveRequest{
		URL:         c.PostForm("tweet_url"),
		NewCategory: c.PostForm("new_category"),
		AddedBy:     c.GetString(usernameKey),
	}

	if raw := strings.TrimSpace(c.PostForm("category_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid category_id"})
			return
		}
		req.CategoryID = id
	}

	post, err := h.service.SaveFromURL(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "add_tweet", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Tweet added",
		"post":    newPostView(*post),
	})
}

func (h *Handler) DeleteTweet(c *gin.Context) {
	id, ok := h.idParam(c)
	if !ok {
		return
	}

	if err := h.service.DeletePost(c.Request.Context(), id); err != nil {
		h.fail(c, "delete_tweet", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Tweet deleted"})
}

func (h *Handler) UpdateCategoryOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ids := make([]int64, len(req.Order))
	for i, id := range req.Order {
		ids[i] = int64(id)
	}

	if err := h.service.ReorderCategories(c.Request.Context(), ids); err != nil {
		if errors.Is(err, bookmarks.ErrEmptyOrder) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No order provided"})
			return
		}
		slog.Error("Failed to update category order", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	})
}

func (h *Handler) idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, operation string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "operation", operation, "error", err)
	} else {
		slog.Debug("Request rejected", "operation", operation, "status", status, "error", err)
	}

	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, bookmarks.ErrEmptyName),
		errors.Is(err, bookmarks.ErrEmptyURL),
		errors.Is(err, bookmarks.ErrNoCategory),
		errors.Is(err, bookmarks.ErrEmptyOrder):
		return http.StatusBadRequest
	case errors.Is(err, bookmarks.ErrCategoryNotFound),
		errors.Is(err, bookmarks.ErrPostNotFound):
		return http.StatusNotFound
	case errors.Is(err, bookmarks.ErrCategoryExists):
		return http.StatusConflict
	case errors.Is(err, bookmarks.ErrExtractionFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bookmarks.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
