package users

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mdmrafi/vartalap/internal/auth"
	"github.com/mdmrafi/vartalap/internal/chat"
	"github.com/mdmrafi/vartalap/internal/config"
	"github.com/mdmrafi/vartalap/internal/httpx"
	"github.com/mdmrafi/vartalap/internal/storage"
)

// Identity here is deliberately thin: the messaging core only needs a
// durable user record behind recipient checks and lastSeen touches,
// plus a way to mint the bearer tokens everything else resolves.
type Service struct {
	Store     *storage.Store
	Hub       *chat.Hub
	JWTSecret string
	JWTTTLMin int
}

type signupReq struct {
	Username string `json:"username" binding:"required"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func RegisterPublic(rg *gin.RouterGroup, st *storage.Store, cfg config.Config) {
	s := Service{
		Store:     st,
		JWTSecret: cfg.JWTSecret,
		JWTTTLMin: cfg.JWTTTLMin,
	}
	rg.POST("/signup", s.signup)
	rg.POST("/login", s.login)
}

func Register(rg *gin.RouterGroup, st *storage.Store, hub *chat.Hub) {
	s := Service{
		Store: st,
		Hub:   hub,
	}
	rg.GET("/me", s.me)
	rg.GET("/users/:id/last-seen", s.lastSeen)
}

func (s Service) signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.Err(c, http.StatusBadRequest, httpx.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	if _, _, err := s.Store.GetUserByUsername(c.Request.Context(), req.Username); err == nil {
		httpx.Err(c, http.StatusConflict, "Username already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "Create user failed")
		return
	}

	uid := uuid.NewString()
	if err := s.Store.CreateUser(c.Request.Context(), uid, req.Username, req.FullName, hash, time.Now().UTC()); err != nil {
		httpx.Err(c, http.StatusBadRequest, "Create user failed")
		return
	}

	tok, err := auth.NewToken(s.JWTSecret, uid, s.JWTTTLMin)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "Token generation failed")
		return
	}
	httpx.Created(c, gin.H{"token": tok, "user_id": uid})
}

func (s Service) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.Err(c, http.StatusBadRequest, httpx.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	user, hash, err := s.Store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil {
		httpx.Err(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		httpx.Err(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	tok, err := auth.NewToken(s.JWTSecret, user.ID, s.JWTTTLMin)
	if err != nil {
		httpx.Err(c, http.StatusInternalServerError, "Token generation failed")
		return
	}
	httpx.OK(c, gin.H{"token": tok, "user_id": user.ID})
}

func (s Service) me(c *gin.Context) {
	uid := auth.MustUserID(c)
	if uid == "" {
		httpx.Err(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := s.Store.GetUser(c.Request.Context(), uid)
	if err != nil {
		httpx.Err(c, http.StatusNotFound, "User not found")
		return
	}
	httpx.OK(c, gin.H{"data": user})
}

func (s Service) lastSeen(c *gin.Context) {
	user, err := s.Store.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpx.Err(c, http.StatusNotFound, "User not found")
		return
	}

	online := s.Hub != nil && s.Hub.Online(user.ID)
	httpx.OK(c, gin.H{"user_id": user.ID, "lastSeen": user.LastSeen, "online": online})
}
