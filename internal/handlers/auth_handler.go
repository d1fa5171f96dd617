package handlers

import (
	"net/http"

	"golang.org/x/oauth2"

	"familytree/internal/logger"
	"familytree/internal/models"
	"familytree/internal/security"
	"familytree/internal/service"
)

// AuthHandler handles registration, login and password reset endpoints
type AuthHandler struct {
	authService          *service.AuthService
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
	appBaseURL           string
	log                  *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL, appBaseURL string, log *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		appBaseURL:           appBaseURL,
		log:                  log,
	}
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      *models.User `json:"user"`
}

func newSessionResponse(session *models.Session, user *models.User) sessionResponse {
	return sessionResponse{
		Token:     session.ID,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		User:      user,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		Name       string `json:"name"`
		InviteCode string `json:"inviteCode"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	session, user, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name, req.InviteCode)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, newSessionResponse(session, user))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	session, user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionResponse(session, user))
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := security.BearerToken(r)
	if token != "" {
		if err := h.authService.Logout(token); err != nil {
			respondError(w, h.log, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetUserFromContext(r.Context()))
}

// ForgotPassword handles POST /api/auth/forgot-password. Always answers 200
// so the endpoint cannot be used to probe for registered addresses.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "If that address is registered, a reset link is on its way",
	})
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, h.log, err)
		return
	}

	if err := h.authService.ResetPassword(req.Token, req.Password); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}

// BuildOAuthProviders assembles the provider configurations from settings
func BuildOAuthProviders(googleID, googleSecret, facebookID, facebookSecret, appleID, appleSecret string) map[string]OAuthProvider {
	return map[string]OAuthProvider{
		"google": {
			Name: "google",
			Config: &oauth2.Config{
				ClientID:     googleID,
				ClientSecret: googleSecret,
				Scopes:       []string{"openid", "email", "profile"},
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://accounts.google.com/o/oauth2/auth",
					TokenURL: "https://oauth2.googleapis.com/token",
				},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
		"facebook": {
			Name: "facebook",
			Config: &oauth2.Config{
				ClientID:     facebookID,
				ClientSecret: facebookSecret,
				Scopes:       []string{"email", "public_profile"},
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://www.facebook.com/v18.0/dialog/oauth",
					TokenURL: "https://graph.facebook.com/v18.0/oauth/access_token",
				},
			},
			UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
		},
		"apple": {
			Name: "apple",
			Config: &oauth2.Config{
				ClientID:     appleID,
				ClientSecret: appleSecret,
				Scopes:       []string{"name", "email"},
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://appleid.apple.com/auth/authorize",
					TokenURL: "https://appleid.apple.com/auth/token",
				},
			},
			AuthParams: map[string]string{"response_mode": "form_post"},
		},
	}
}
