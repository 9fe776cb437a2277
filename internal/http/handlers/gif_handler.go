package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AddGifRequest is the payload of POST /gifs.
type AddGifRequest struct {
	URL string `json:"url" binding:"required"`
}

// GifResponse carries one link from the pool.
type GifResponse struct {
	URL string `json:"url"`
}

// AddGifResponse reports the pool size after an insert.
type AddGifResponse struct {
	Total int `json:"total"`
}

// RandomGif returns a random link from the pool, or 404 when it is empty.
func (h *Handlers) RandomGif(c *gin.Context) {
	u, err := h.gifs.Random(c.Request.Context())
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, GifResponse{URL: u})
}

// AddGif appends a link to the pool. Duplicates are reported with 409.
func (h *Handlers) AddGif(c *gin.Context) {
	var req AddGifRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "url is required")
		return
	}
	total, err := h.gifs.Add(c.Request.Context(), req.URL)
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusCreated, AddGifResponse{Total: total})
}
