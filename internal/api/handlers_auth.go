package api

import (
	"time"

	"ai-trading-assistant-go/internal/auth"
	"ai-trading-assistant-go/internal/models"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}

	user, err := s.deps.Auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	token, expiresAt, err := s.deps.Auth.Tokens().Issue(user.ID)
	if err != nil {
		failErr(c, err)
		return
	}
	created(c, session{User: user, Token: token, ExpiresAt: expiresAt})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	user, token, err := s.deps.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, session{User: user, Token: token})
}

// logout is a no-op for stateless tokens; clients drop the token.
func (s *Server) logout(c *gin.Context) {
	ok(c, gin.H{"message": "Logged out"})
}

func (s *Server) profile(c *gin.Context) {
	user, err := s.deps.Auth.GetUser(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, user)
}

func (s *Server) updateProfile(c *gin.Context) {
	var req auth.ProfileUpdate
	if !bind(c, &req) {
		return
	}

	user, err := s.deps.Auth.UpdateProfile(c.Request.Context(), CurrentUserID(c), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, gin.H{"message": "Profile updated", "user": user})
}
