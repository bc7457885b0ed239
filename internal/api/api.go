package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/useradmin/internal/audit"
	"github.com/wuwenbin0122/useradmin/internal/auth"
	"github.com/wuwenbin0122/useradmin/internal/events"
	"github.com/wuwenbin0122/useradmin/internal/users"
)

const (
	msgEmailExists  = "User with this email already exists"
	msgUserNotFound = "User not found"
)

type Options struct {
	RequestTimeout time.Duration
	SecureCookie   bool
}

type Handler struct {
	authService *auth.Service
	userService *users.Service
	recorder    audit.Recorder
	hub         *events.Hub
	logger      *zap.Logger
	opts        Options
}

func NewHandler(authService *auth.Service, userService *users.Service, recorder audit.Recorder, hub *events.Hub, logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = audit.NewLogRecorder(logger)
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}

	return &Handler{
		authService: authService,
		userService: userService,
		recorder:    recorder,
		hub:         hub,
		logger:      logger,
		opts:        opts,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	apiGroup := router.Group("/api")

	authGroup := apiGroup.Group("/auth", h.withTimeout())
	authGroup.POST("/login", h.handleLogin)
	authGroup.POST("/logout", h.handleLogout)
	authGroup.GET("/session", h.requireSession(), h.handleSession)

	userGroup := apiGroup.Group("/users", h.requireSession())
	if h.hub != nil {
		userGroup.GET("/events", h.handleEvents)
	}

	crud := userGroup.Group("", h.withTimeout())
	crud.GET("", h.handleListUsers)
	crud.POST("", h.handleCreateUser)
	crud.GET("/:id", h.handleGetUser)
	crud.PUT("/:id", h.handleUpdateUser)
	crud.PATCH("/:id", h.handleUpdateUser)
	crud.DELETE("/:id", h.handleDeleteUser)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		h.writeError(c, http.StatusBadRequest, "email and password are required", auth.ErrInvalidCredentials)
		return
	}

	ctx := c.Request.Context()
	result, err := h.authService.Login(ctx, auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		IP:       c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.record(ctx, audit.Event{
				Action:   audit.ActionLoginFailed,
				Metadata: map[string]any{"email": strings.ToLower(strings.TrimSpace(req.Email)), "ip": c.ClientIP()},
			})
			h.writeError(c, http.StatusUnauthorized, "invalid credentials", err)
		case errors.Is(err, auth.ErrTooManyAttempts):
			h.writeError(c, http.StatusTooManyRequests, "too many login attempts, try again later", err)
		default:
			h.writeError(c, http.StatusInternalServerError, "failed to login", err)
		}
		return
	}

	h.record(ctx, audit.Event{
		Action:    audit.ActionLoginSucceeded,
		ActorID:   result.User.ID,
		SubjectID: result.User.ID,
		Metadata:  map[string]any{"ip": c.ClientIP()},
	})

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, result.Token, int(time.Until(result.ExpiresAt).Seconds()), "/", "", h.opts.SecureCookie, true)
	c.JSON(http.StatusOK, newAuthResponse(result))
}

func (h *Handler) handleLogout(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, "", -1, "/", "", h.opts.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

func (h *Handler) handleSession(c *gin.Context) {
	claims := sessionClaims(c)
	c.JSON(http.StatusOK, gin.H{
		"user":      claims.Identity(),
		"expiresAt": claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleListUsers(c *gin.Context) {
	page, err := h.userService.List(c.Request.Context(), users.ListParams{
		Page:   parsePositiveInt(c.Query("page"), users.DefaultPage),
		Limit:  parsePositiveInt(c.Query("limit"), users.DefaultLimit),
		Search: c.Query("search"),
	})
	if err != nil {
		h.writeError(c, http.StatusInternalServerError, "Failed to fetch users", err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *Handler) handleGetUser(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handler) handleCreateUser(c *gin.Context) {
	var req users.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.userService.Create(ctx, req)
	if err != nil {
		h.writeServiceError(c, err, "Failed to create user")
		return
	}

	h.record(ctx, audit.Event{
		Action:    audit.ActionUserCreated,
		ActorID:   sessionClaims(c).Subject,
		SubjectID: user.ID.Hex(),
		Metadata:  map[string]any{"email": user.Email},
	})
	h.hub.Publish(events.Event{Type: events.UserCreated, UserID: user.ID.Hex(), User: user})

	c.JSON(http.StatusCreated, user)
}

func (h *Handler) handleUpdateUser(c *gin.Context) {
	var req users.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	user, err := h.userService.Update(ctx, id, req)
	if err != nil {
		h.writeServiceError(c, err, "Failed to update user")
		return
	}

	h.record(ctx, audit.Event{
		Action:    audit.ActionUserUpdated,
		ActorID:   sessionClaims(c).Subject,
		SubjectID: id,
		Metadata:  map[string]any{"passwordChanged": req.Password != nil && *req.Password != ""},
	})
	h.hub.Publish(events.Event{Type: events.UserUpdated, UserID: id, User: user})

	c.JSON(http.StatusOK, user)
}

func (h *Handler) handleDeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.userService.Delete(ctx, id); err != nil {
		h.writeServiceError(c, err, "Failed to delete user")
		return
	}

	h.record(ctx, audit.Event{
		Action:    audit.ActionUserDeleted,
		ActorID:   sessionClaims(c).Subject,
		SubjectID: id,
	})
	h.hub.Publish(events.Event{Type: events.UserDeleted, UserID: id})

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (h *Handler) handleEvents(c *gin.Context) {
	h.hub.Serve(c.Writer, c.Request)
}

func (h *Handler) record(ctx context.Context, event audit.Event) {
	if err := h.recorder.Record(ctx, event); err != nil {
		h.logger.Warn("audit record failed", zap.String("action", string(event.Action)), zap.Error(err))
	}
}

func newAuthResponse(result *auth.AuthResult) gin.H {
	return gin.H{
		"token":     result.Token,
		"expiresAt": result.ExpiresAt.UTC().Format(time.RFC3339),
		"user":      result.User,
	}
}

// writeServiceError maps users service errors onto HTTP responses.
func (h *Handler) writeServiceError(c *gin.Context, err error, fallback string) {
	var fields users.FieldErrors
	switch {
	case errors.As(err, &fields):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": fields,
		})
	case errors.Is(err, users.ErrEmailExists):
		h.writeError(c, http.StatusBadRequest, msgEmailExists, err)
	case errors.Is(err, users.ErrNotFound):
		h.writeError(c, http.StatusNotFound, msgUserNotFound, err)
	default:
		h.writeError(c, http.StatusInternalServerError, fallback, err)
	}
}

// writeError sends message to the caller. The underlying error is only
// logged, and only for server-side failures.
func (h *Handler) writeError(c *gin.Context, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error(message,
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func parsePositiveInt(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}

	return value
}
