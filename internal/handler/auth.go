package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/auth"
)

// AuthHandler manages operator login and logout.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin  → check the password, issue a JWT cookie
//   - HandleLogout → clear the JWT cookie
//   - HandleMe     → report who the current token belongs to
type AuthHandler struct {
	gate   *auth.Gate
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(gate *auth.Gate, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{gate: gate, logger: logger}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleLogin exchanges the operator password for a token.
//
// HTTP: POST /api/login
// REQUEST BODY: {"password": "..."}
//
// The token is returned in the body for scripts and set as an HttpOnly
// cookie for the browser. HttpOnly keeps it out of reach of JavaScript.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Password == "" {
		writeError(w, apperror.ValidationFailed("password", "password is required"))
		return
	}

	token, err := h.gate.Login(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	ttl := h.gate.Tokens().TTL()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: time.Now().Add(ttl).UTC()})
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /api/logout
//
// Since tokens are stateless, the token itself stays valid until it expires;
// logout only makes the browser forget it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the subject of the presented token.
//
// HTTP: GET /api/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthRequired("not logged in", nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"subject": subject})
}
