package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"smart-tasks-backend/internal/apperr"
	"smart-tasks-backend/internal/db"
	"smart-tasks-backend/internal/httpapi"
)

type registerBody struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"omitempty,mintrim=3,max=150"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginBody struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

const maxPasswordBytes = 72

// freeUsername returns base, or base with the lowest numeric suffix from 2 up
// that no user holds yet.
func freeUsername(dbx *gorm.DB, base string) (string, error) {
	var taken []string
	err := dbx.Model(&User{}).
		Where("username = ? OR username LIKE ?", base, base+"%").
		Pluck("username", &taken).Error
	if err != nil {
		return "", err
	}
	used := make(map[string]bool, len(taken))
	for _, u := range taken {
		used[u] = true
	}
	name := base
	for n := 2; used[name]; n++ {
		name = base + strconv.Itoa(n)
	}
	return name, nil
}

func RegisterHandler(dbx *gorm.DB, tokens Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerBody
		if err := httpapi.Decode(r, &body); err != nil {
			httpapi.Error(w, r, err)
			return
		}

		// bcrypt's limit is in bytes, the tag counts characters
		if len(body.Password) > maxPasswordBytes {
			httpapi.Error(w, r, apperr.Invalid("password", fmt.Sprintf("must be at most %d bytes long", maxPasswordBytes)))
			return
		}

		email := strings.ToLower(strings.TrimSpace(body.Email))
		username := strings.TrimSpace(body.Username)
		if username == "" {
			var err error
			username, err = freeUsername(dbx.WithContext(r.Context()), strings.SplitN(email, "@", 2)[0])
			if err != nil {
				httpapi.Error(w, r, err)
				return
			}
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}

		u := User{Username: username, Email: email, Password: string(hash)}
		if err := dbx.WithContext(r.Context()).Create(&u).Error; err != nil {
			if db.IsUniqueViolation(err) {
				httpapi.Error(w, r, apperr.Invalid("email", "a user with this email or username already exists"))
				return
			}
			httpapi.Error(w, r, err)
			return
		}

		token, err := tokens.Generate(u.ID)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}

		httpapi.JSON(w, http.StatusCreated, map[string]any{
			"user_id": u.ID,
			"token":   token,
		})
	}
}

func LoginHandler(dbx *gorm.DB, tokens Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginBody
		if err := httpapi.Decode(r, &body); err != nil {
			httpapi.Error(w, r, err)
			return
		}

		var u User
		err := dbx.WithContext(r.Context()).
			Where("email = ?", strings.ToLower(strings.TrimSpace(body.Email))).
			First(&u).Error
		if err != nil && !db.IsNotFound(err) {
			httpapi.Error(w, r, err)
			return
		}
		if err != nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(body.Password)) != nil {
			httpapi.Error(w, r, apperr.ErrUnauthorized)
			return
		}

		token, err := tokens.Generate(u.ID)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}

		httpapi.OK(w, map[string]any{
			"user_id": u.ID,
			"token":   token,
		})
	}
}

func MeHandler(dbx *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := Caller(w, r)
		if !ok {
			return
		}

		u, err := FindUser(r.Context(), dbx, uid)
		if err != nil {
			httpapi.Error(w, r, err)
			return
		}

		httpapi.OK(w, map[string]any{
			"user_id":  u.ID,
			"email":    u.Email,
			"username": u.Username,
		})
	}
}

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// JWT is stateless: the client drops its token.
		httpapi.OK(w, map[string]any{"ok": true})
	}
}
