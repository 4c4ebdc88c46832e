package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/store"
)

var errEmailTaken = apperr.Conflict("email already registered")

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, u *models.User) error
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID primitive.ObjectID, isAdmin bool) (string, time.Time, error)
}

// CookieSettings names the session cookie and how it is scoped.
type CookieSettings struct {
	Name   string
	Secure bool
}

func (s CookieSettings) set(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.Name, value, maxAge, "/", "", s.Secure, true)
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID.Hex(), Name: u.Name, Email: u.Email, IsAdmin: u.IsAdmin}
}

// Register creates a customer account and signs it in.
func Register(users UserStore, tokens TokenIssuer, cookie CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req RegisterRequest
		if !bindJSON(c, &req) {
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, errNameRequired)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondWithError(c, err)
			return
		}
		now := time.Now()
		user := &models.User{
			Name:         name,
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := users.Insert(ctx, user); err != nil {
			respondWithError(c, mapDuplicate(err, errEmailTaken))
			return
		}

		if !signIn(c, tokens, cookie, user) {
			return
		}
		lg := logger.Component(ctx, "auth")
		lg.Info().Str("user_id", user.ID.Hex()).Msg("user registered")
		c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
	}
}

// Login checks the credentials and sets the session cookie.
func Login(users UserStore, tokens TokenIssuer, cookie CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		lg := logger.Component(ctx, "auth")
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}

		user, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				lg.Info().Msg("login rejected: unknown email")
				respondWithError(c, auth.ErrInvalidCredentials)
				return
			}
			respondWithError(c, err)
			return
		}
		if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
			lg.Info().Str("user_id", user.ID.Hex()).Msg("login rejected: wrong password")
			respondWithError(c, err)
			return
		}

		if !signIn(c, tokens, cookie, user) {
			return
		}
		lg.Info().Str("user_id", user.ID.Hex()).Bool("admin", user.IsAdmin).Msg("login succeeded")
		c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
	}
}

func Logout(cookie CookieSettings) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie.set(c, "", -1)
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// Me returns the signed-in user.
func Me(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		user, err := users.FindByID(c.Request.Context(), id.UserID)
		if err != nil {
			respondWithError(c, mapNotFound(err, errNoIdentity))
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func signIn(c *gin.Context, tokens TokenIssuer, cookie CookieSettings, user *models.User) bool {
	token, expires, err := tokens.Issue(user.ID, user.IsAdmin)
	if err != nil {
		respondWithError(c, err)
		return false
	}
	cookie.set(c, token, int(time.Until(expires).Seconds()))
	return true
}
