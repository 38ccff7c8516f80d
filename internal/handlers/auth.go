package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tutorhub/apiserver/internal/services"
	"github.com/tutorhub/apiserver/types"
)

const defaultTokenTTL = 7 * 24 * time.Hour

// AuthOptions configures token issuance and the session cookie.
type AuthOptions struct {
	Secret       string
	TokenTTL     time.Duration
	CookieName   string
	CookieSecure bool
}

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
	cookieName  string
	secure      bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, opts AuthOptions) *AuthHandler {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = defaultTokenTTL
	}
	if opts.CookieName == "" {
		opts.CookieName = "token"
	}
	return &AuthHandler{
		userService: userService,
		secret:      []byte(opts.Secret),
		tokenTTL:    opts.TokenTTL,
		cookieName:  opts.CookieName,
		secure:      opts.CookieSecure,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth accepts the session cookie or a bearer token and injects the
// caller's identity into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := h.requestToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		identity, err := parseToken(tokenString, h.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithIdentity(r.Context(), identity)))
	})
}

// RequireRole rejects authenticated callers whose role differs from role.
func RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identityFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if identity.Role != role {
				writeError(w, http.StatusForbidden, "only "+string(role)+"s")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Register creates a new account, sets the session cookie and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	user, err := h.userService.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     types.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create user")
		return
	}

	h.respondWithToken(w, http.StatusCreated, user)
}

// Login verifies credentials, sets the session cookie and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "failed to authenticate")
		return
	}

	h.respondWithToken(w, http.StatusOK, user)
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.clearCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	user, err := h.userService.GetByID(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.clearCookie(w)
			writeError(w, http.StatusUnauthorized, "user not found")
			return
		}
		writeServiceError(w, r, err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, user types.User) {
	token, err := issueToken(user, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, AuthResponse{Token: token, User: user})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) requestToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(h.cookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return strings.TrimSpace(cookie.Value), nil
	}
	return bearerToken(r)
}

type identityClaims struct {
	Role types.Role `json:"role"`
	Name string     `json:"name"`
	jwt.RegisteredClaims
}

func issueToken(user types.User, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := identityClaims{
		Role: user.Role,
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseToken(tokenString string, secret []byte) (types.Identity, error) {
	claims := identityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return types.Identity{}, err
	}
	if !token.Valid {
		return types.Identity{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return types.Identity{}, errors.New("missing subject")
	}
	if !claims.Role.Valid() {
		return types.Identity{}, errors.New("invalid role claim")
	}
	return types.Identity{ID: claims.Subject, Role: claims.Role, Name: claims.Name}, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
