package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
	"whiteboard-complete/core"

	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// TokenCookieName is the session cookie carrying the JWT. Cookie
// hardening flags beyond HttpOnly/SameSite are deployment concerns
// (reverse proxy, TLS) and not decided here.
const TokenCookieName = "token"

const tokenValidity = time.Hour * 24 * 7

var jwtSecret []byte

// AppClaims represents the custom claims for the JWT. Subject is the
// user id.
type AppClaims struct {
	jwt.RegisteredClaims
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// InitAuth reads the JWT secret and configures the optional OIDC
// provider.
func InitAuth(users core.UserStore) {
	jwtSecret = []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
	initOIDC(users)
}

// HandleRegister creates a user from name/email/password and logs them
// in. Emails are unique case-insensitively; duplicates return 409.
func HandleRegister(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.Name == "" || req.Email == "" || req.Password == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "All fields are required"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to hash password"})
			return
		}

		now := time.Now()
		user := &core.User{
			ID:           uuid.NewString(),
			Name:         req.Name,
			Email:        normalizeEmail(req.Email),
			PasswordHash: string(hash),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := users.CreateUser(r.Context(), user); err != nil {
			if errors.Is(err, core.ErrEmailTaken) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, map[string]string{"error": "User already exists"})
				return
			}
			logrus.WithError(err).Error("Failed to create user")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create user"})
			return
		}

		token, err := CreateJWT(user)
		if err != nil {
			logrus.WithError(err).Error("Failed to create JWT")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to issue token"})
			return
		}
		setTokenCookie(w, r, token)

		logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("User registered")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{"token": token, "user": user})
	}
}

// HandleLogin verifies email/password and issues a JWT in both the
// response body and the session cookie.
func HandleLogin(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Email and password required"})
			return
		}

		user, err := users.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
		if err != nil || user.PasswordHash == "" {
			// Same response for unknown email and OAuth-only account.
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid email or password"})
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Invalid email or password"})
			return
		}

		token, err := CreateJWT(user)
		if err != nil {
			logrus.WithError(err).Error("Failed to create JWT")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to issue token"})
			return
		}
		setTokenCookie(w, r, token)

		logrus.WithField("user_id", user.ID).Info("User logged in")
		render.JSON(w, r, map[string]any{"token": token, "user": user})
	}
}

// HandleLogout clears the session cookie.
func HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     TokenCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		render.JSON(w, r, map[string]string{"message": "Logged out"})
	}
}

// HandleMe returns the authenticated user's record.
func HandleMe(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := subjectFrom(r)
		user, err := users.GetUser(r.Context(), userID)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "User not found"})
			return
		}
		render.JSON(w, r, user)
	}
}

// HandleFindID resolves a user id from an email address; the share
// dialog uses it to target users.
func HandleFindID(users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		if email == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Email is required"})
			return
		}

		user, err := users.GetUserByEmail(r.Context(), normalizeEmail(email))
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "User not found"})
			return
		}
		render.JSON(w, r, map[string]string{"userId": user.ID})
	}
}

// HandleRecents returns the user's recently-visited boards resolved to
// board metadata, most recent first. Ids whose board was deleted or is
// no longer visible to the user are skipped rather than failing the
// whole listing; they age out of the list on later visits.
func HandleRecents(users core.UserStore, boards core.BoardStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := subjectFrom(r)
		user, err := users.GetUser(r.Context(), userID)
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "User not found"})
			return
		}

		recents := make([]*core.Board, 0, len(user.Recents))
		for _, boardID := range user.Recents {
			board, err := boards.GetBoard(r.Context(), boardID)
			if err != nil {
				if !errors.Is(err, core.ErrNotFound) {
					logrus.WithError(err).WithField("board_id", boardID).Warn("Failed to resolve recent board")
				}
				continue
			}
			if !core.Resolve(board, userID).Has(core.CapView) {
				continue
			}
			board.Data = ""
			recents = append(recents, board)
		}
		render.JSON(w, r, recents)
	}
}

// CreateJWT signs an HS256 token for the user, valid for a week.
func CreateJWT(user *core.User) (string, error) {
	claims := AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenValidity)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseJWT validates a token string and returns its claims.
func ParseJWT(tokenString string) (*AppClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*AppClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func setTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(tokenValidity),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type contextKey string

// ClaimsContextKey is where the auth middleware stashes parsed claims.
// It lives here rather than in the middleware package because that
// package already imports this one for ParseJWT.
const ClaimsContextKey = contextKey("claims")

// ClaimsFrom returns the claims the auth middleware attached to the
// request, if any.
func ClaimsFrom(r *http.Request) (*AppClaims, bool) {
	claims, ok := r.Context().Value(ClaimsContextKey).(*AppClaims)
	return claims, ok
}

// ActorID returns the authenticated user id, or "" for an anonymous
// request; "" resolves to the empty capability set on private boards.
func ActorID(r *http.Request) string {
	claims, ok := ClaimsFrom(r)
	if !ok {
		return ""
	}
	return claims.Subject
}

func subjectFrom(r *http.Request) string { return ActorID(r) }
