package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/confessions/internal/confessions"
	"github.com/gin-gonic/gin"
)

type confessionPayload struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Department    string    `json:"department"`
	Gender        *string   `json:"gender"`
	Year          *int      `json:"year"`
	Upvotes       int64     `json:"upvotes"`
	Downvotes     int64     `json:"downvotes"`
	CommentsCount int64     `json:"commentsCount"`
	Views         int64     `json:"views"`
	CreatedAt     time.Time `json:"createdAt"`
}

type commentPayload struct {
	ID           string    `json:"id"`
	ConfessionID string    `json:"confessionId"`
	Text         string    `json:"text"`
	Upvotes      int64     `json:"upvotes"`
	Downvotes    int64     `json:"downvotes"`
	CreatedAt    time.Time `json:"createdAt"`
}

type createConfessionRequestPayload struct {
	Text       string  `json:"text"`
	Department string  `json:"department"`
	Gender     *string `json:"gender"`
	Year       *int    `json:"year"`
}

type createCommentRequestPayload struct {
	Text string `json:"text"`
}

func newConfessionPayload(confession confessions.Confession) confessionPayload {
	var gender *string
	if confession.Gender != nil {
		value := string(*confession.Gender)
		gender = &value
	}
	return confessionPayload{
		ID:            confession.ID,
		Text:          confession.Text,
		Department:    confession.Department.String(),
		Gender:        gender,
		Year:          confession.Year,
		Upvotes:       confession.Upvotes,
		Downvotes:     confession.Downvotes,
		CommentsCount: confession.CommentsCount,
		Views:         confession.Views,
		CreatedAt:     confession.CreatedAt.UTC(),
	}
}

func newConfessionPayloads(records []confessions.Confession) []confessionPayload {
	payloads := make([]confessionPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, newConfessionPayload(record))
	}
	return payloads
}

func newCommentPayload(comment confessions.Comment) commentPayload {
	return commentPayload{
		ID:           comment.ID,
		ConfessionID: comment.ConfessionID,
		Text:         comment.Text,
		Upvotes:      comment.Upvotes,
		Downvotes:    comment.Downvotes,
		CreatedAt:    comment.CreatedAt.UTC(),
	}
}

func (h *httpHandler) handleListConfessions(c *gin.Context) {
	filter := confessions.ListFilter{
		Department: c.Query("department"),
		Search:     c.Query("search"),
	}
	records, err := h.service.ListConfessions(c.Request.Context(), filter)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConfessionPayloads(records))
}

func (h *httpHandler) handleCreateConfession(c *gin.Context) {
	var request createConfessionRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	createRequest := confessions.CreateConfessionRequest{
		Text:       request.Text,
		Department: request.Department,
		Year:       request.Year,
	}
	if request.Gender != nil {
		createRequest.Gender = *request.Gender
	}

	created, err := h.service.CreateConfession(c.Request.Context(), createRequest)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newConfessionPayload(created))
}

func (h *httpHandler) handleVoteConfession(direction confessions.VoteDirection) gin.HandlerFunc {
	return func(c *gin.Context) {
		confessionID, err := confessions.NewConfessionID(c.Param("id"))
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		updated, err := h.service.VoteConfession(c.Request.Context(), confessionID, direction, h.callerVoterID(c))
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, newConfessionPayload(updated))
	}
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	confessionID, err := confessions.NewConfessionID(c.Param("id"))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	comments, err := h.service.ListComments(c.Request.Context(), confessionID)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	payloads := make([]commentPayload, 0, len(comments))
	for _, comment := range comments {
		payloads = append(payloads, newCommentPayload(comment))
	}
	c.JSON(http.StatusOK, payloads)
}

func (h *httpHandler) handleCreateComment(c *gin.Context) {
	confessionID, err := confessions.NewConfessionID(c.Param("id"))
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	var request createCommentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	created, err := h.service.CreateComment(c.Request.Context(), confessionID, request.Text)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCommentPayload(created))
}

func (h *httpHandler) handleVoteComment(direction confessions.VoteDirection) gin.HandlerFunc {
	return func(c *gin.Context) {
		confessionID, err := confessions.NewConfessionID(c.Param("id"))
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		commentID, err := confessions.NewCommentID(c.Param("commentId"))
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		updated, err := h.service.VoteComment(c.Request.Context(), confessionID, commentID, direction, h.callerVoterID(c))
		if err != nil {
			h.respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, newCommentPayload(updated))
	}
}

func (h *httpHandler) handleTrending(c *gin.Context) {
	records, err := h.service.Trending(c.Request.Context())
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newConfessionPayloads(records))
}
