package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"github.com/jmerrifield20/donationcore/internal/identity"
	"github.com/jmerrifield20/donationcore/internal/users"
	"go.uber.org/zap"
)

// UserHandler serves account registration, password login and the
// current-account lookup.
type UserHandler struct {
	users    *users.UserService
	sessions *identity.SessionIssuer
	logger   *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *users.UserService, sessions *identity.SessionIssuer, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: svc, sessions: sessions, logger: logger}
}

// Register mounts the user routes onto rg. Middleware in mw guards the
// register and login endpoints.
func (h *UserHandler) Register(rg *gin.RouterGroup, mw ...gin.HandlerFunc) {
	g := rg.Group("/users")
	open := g.Group("", mw...)
	open.POST("/register", h.Signup)
	open.POST("/login", h.Login)
	g.GET("/me", RequireSession(h.sessions), h.Me)
}

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
	UserType    string `json:"userType"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST /api/users/register.
func (h *UserHandler) Signup(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	u, err := h.users.Register(c.Request.Context(), users.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
		UserType:    users.UserType(req.UserType),
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Registration successful",
		"data":    u,
	})
}

// Login handles POST /api/users/login. Valid credentials yield the same
// session token as an OTP login.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	u, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		recordPasswordLogin(string(fault.CodeOf(err)))
		writeError(c, h.logger, err)
		return
	}

	token, exp, err := h.sessions.Issue(u.ID.String(), u.PhoneNumber)
	if err != nil {
		recordPasswordLogin(string(fault.CodeInternal))
		writeError(c, h.logger, fault.Wrap(fault.CodeInternal, "failed to issue session", err))
		return
	}
	recordPasswordLogin("ok")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"data": sessionResponse{
			Token:       token,
			TokenType:   "Bearer",
			ExpiresAt:   exp,
			PhoneNumber: u.PhoneNumber,
			User:        u,
		},
	})
}

// Me handles GET /api/users/me for the account behind the session.
func (h *UserHandler) Me(c *gin.Context) {
	claims := SessionFrom(c)
	u, err := h.users.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": u})
}
