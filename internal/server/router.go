package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/confessions/internal/auth"
	"github.com/MarcoPoloResearchLab/confessions/internal/confessions"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callerIDContextKey = "confessions_caller_id"

var (
	errMissingTokenIssuer       = errors.New("token issuer dependency required")
	errMissingConfessionService = errors.New("confessions service dependency required")
	errInvalidAuthorization     = errors.New("authorization header missing or invalid")
)

// TokenIssuer mints and checks anonymous caller tokens.
type TokenIssuer interface {
	IssueAnonymousToken(ctx context.Context) (auth.AnonymousToken, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the services the HTTP surface calls into.
type Dependencies struct {
	ConfessionsService *confessions.Service
	TokenIssuer        TokenIssuer
	Logger             *zap.Logger
	AllowedOrigins     []string
	PostingCooldown    time.Duration
	Clock              func() time.Time
}

// NewHTTPHandler builds the gin router serving the confessions API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenIssuer == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.ConfessionsService == nil {
		return nil, errMissingConfessionService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		service:  deps.ConfessionsService,
		tokens:   deps.TokenIssuer,
		cooldown: newPostingCooldown(deps.PostingCooldown, deps.Clock),
		logger:   logger,
	}

	router.POST("/auth/anonymous", handler.handleAnonymousAuth)

	api := router.Group("/")
	api.Use(handler.identifyCaller)
	api.GET("/confessions", handler.handleListConfessions)
	api.POST("/confessions", handler.enforceCooldown, handler.handleCreateConfession)
	api.POST("/confessions/:id/upvote", handler.voteChain(handler.handleVoteConfession(confessions.VoteUp))...)
	api.POST("/confessions/:id/downvote", handler.voteChain(handler.handleVoteConfession(confessions.VoteDown))...)
	api.GET("/confessions/:id/comments", handler.handleListComments)
	api.POST("/confessions/:id/comments", handler.handleCreateComment)
	api.POST("/confessions/:id/comments/:commentId/upvote", handler.voteChain(handler.handleVoteComment(confessions.VoteUp))...)
	api.POST("/confessions/:id/comments/:commentId/downvote", handler.voteChain(handler.handleVoteComment(confessions.VoteDown))...)
	api.GET("/trending", handler.handleTrending)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	config.AllowAllOrigins = len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			config.AllowAllOrigins = true
			break
		}
	}
	if !config.AllowAllOrigins {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)))
	}
}

type httpHandler struct {
	service  *confessions.Service
	tokens   TokenIssuer
	cooldown *postingCooldown
	logger   *zap.Logger
}

type anonymousAuthResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleAnonymousAuth(c *gin.Context) {
	issued, err := h.tokens.IssueAnonymousToken(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to issue anonymous token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, anonymousAuthResponsePayload{
		AccessToken: issued.Token,
		ExpiresIn:   issued.ExpiresIn,
		TokenType:   "Bearer",
	})
}

// identifyCaller attaches the token subject when a bearer token is presented.
// Requests without an Authorization header stay anonymous.
func (h *httpHandler) identifyCaller(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(callerIDContextKey, subject)
	c.Next()
}

func (h *httpHandler) requireCaller(c *gin.Context) {
	if c.GetString(callerIDContextKey) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

// enforceCooldown starts the caller's window only when the post is created.
func (h *httpHandler) enforceCooldown(c *gin.Context) {
	key := c.GetString(callerIDContextKey)
	if key == "" {
		key = c.ClientIP()
	}
	if !h.cooldown.Begin(key) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "posting too fast, please wait"})
		return
	}

	posted := false
	defer func() {
		h.cooldown.Finish(key, posted)
	}()
	c.Next()
	posted = c.Writer.Status() == http.StatusCreated
}

// voteChain prepends the caller requirement when votes are de-duplicated per caller.
func (h *httpHandler) voteChain(final gin.HandlerFunc) []gin.HandlerFunc {
	if h.service.DedupeVotes() {
		return []gin.HandlerFunc{h.requireCaller, final}
	}
	return []gin.HandlerFunc{final}
}

func (h *httpHandler) callerVoterID(c *gin.Context) confessions.VoterID {
	subject := c.GetString(callerIDContextKey)
	if subject == "" {
		return ""
	}
	voter, err := confessions.NewVoterID(subject)
	if err != nil {
		return ""
	}
	return voter
}

// respondWithError maps service failures onto HTTP statuses.
func (h *httpHandler) respondWithError(c *gin.Context, err error) {
	body := gin.H{}
	var serviceErr *confessions.ServiceError
	if errors.As(err, &serviceErr) {
		body["code"] = serviceErr.Code()
	}

	status := http.StatusInternalServerError
	var validationErr *confessions.ValidationError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		body["error"] = validationErr.Message
	case errors.Is(err, confessions.ErrNotFound):
		status = http.StatusNotFound
		body["error"] = "not found"
	case errors.Is(err, confessions.ErrDuplicateVote):
		status = http.StatusConflict
		body["error"] = "vote already recorded"
	default:
		h.logger.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		body["error"] = "internal error"
	}
	c.JSON(status, body)
}
