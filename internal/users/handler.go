package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobtracker-backend/internal/shared/server/middleware"
	"jobtracker-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the account routes. /auth/register and /auth/login
// must be public in the auth middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
	rg.GET("/auth/me", h.me)
	rg.PUT("/auth/profile", h.updateProfile)
	rg.PUT("/auth/change-password", h.changePassword)
}

type userResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	PictureURL string  `json:"pictureUrl,omitempty"`
	Profile    Profile `json:"profile"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		PictureURL: u.PictureURL,
		Profile:    u.Profile,
	}
}

type sessionResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	sess, err := h.Svc.Register(c.Request.Context(), RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, sessionResponse{
		Message: "User registered successfully",
		Token:   sess.Token,
		User:    toUserResponse(sess.User),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	sess, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, sessionResponse{
		Message: "Login successful",
		Token:   sess.Token,
		User:    toUserResponse(sess.User),
	})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req struct {
		Name    *string  `json:"name"`
		Email   *string  `json:"email"`
		Profile *Profile `json:"profile"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	user, err := h.Svc.UpdateProfile(c.Request.Context(), middleware.UserIDFromContext(c), ProfileUpdate{
		Name:    req.Name,
		Email:   req.Email,
		Profile: req.Profile,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    toUserResponse(user),
	})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), middleware.UserIDFromContext(c), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func writeError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", verr.Message, []ValidationError{*verr})
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusBadRequest, "user_exists", "User already exists with this email", nil)
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusBadRequest, "invalid_credentials", "Invalid credentials", nil)
	case errors.Is(err, ErrWrongPassword):
		respond.Error(c, http.StatusBadRequest, "invalid_credentials", "Current password is incorrect", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "User not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Server error", nil)
	}
}
