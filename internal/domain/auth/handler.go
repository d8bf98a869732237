package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jdcportal/internal/middleware"
	"jdcportal/internal/pkg/response"
)

const stateCookie = "oauth_state"

// Handler manages the Google sign-in round trip and the session cookie.
type Handler struct {
	service         *Service
	cookieSecure    bool
	cookieSameSite  string
	sessionMaxAge   int
	successRedirect string
}

func NewHandler(service *Service, cookieSecure bool, cookieSameSite string, sessionMaxAge int, successRedirect string) *Handler {
	if successRedirect == "" {
		successRedirect = "/"
	}
	return &Handler{
		service:         service,
		cookieSecure:    cookieSecure,
		cookieSameSite:  cookieSameSite,
		sessionMaxAge:   sessionMaxAge,
		successRedirect: successRedirect,
	}
}

func (h *Handler) RegisterPublicRoutes(r gin.IRouter) {
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/google", h.Login)
		authGroup.GET("/google/callback", h.Callback)
		authGroup.POST("/logout", h.Logout)
	}
}

// Login redirects to Google's consent screen with a fresh state cookie.
// @Summary		Connexion Google
// @Description	Pose le cookie d'état et redirige vers l'écran de consentement Google (accès hors ligne).
// @Tags		Auth
// @Success		302	"Redirection vers Google"
// @Router		/auth/google [GET]
func (h *Handler) Login(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to start login")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/auth", "", h.cookieSecure, true)
	c.Redirect(http.StatusFound, h.service.LoginURL(state))
}

// Callback completes the sign-in and sets the session cookie.
// @Summary		Retour OAuth Google
// @Description	Vérifie l'état, échange le code, enregistre le profil puis pose le cookie de session.
// @Tags		Auth
// @Param		state	query	string	true	"État émis par /auth/google"
// @Param		code	query	string	false	"Code d'autorisation Google"
// @Param		error	query	string	false	"Refus de l'utilisateur"
// @Success		302	"Redirection vers le portail"
// @Failure		400	{object}		map[string]interface{} "État invalide ou code manquant"
// @Failure		401	{object}		map[string]interface{} "Connexion refusée"
// @Failure		502	{object}		map[string]interface{} "Google indisponible"
// @Router		/auth/google/callback [GET]
func (h *Handler) Callback(c *gin.Context) {
	expected, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/auth", "", h.cookieSecure, true)

	if expected == "" || c.Query("state") != expected {
		response.Error(c, http.StatusBadRequest, "INVALID_STATE", "Login session expired, please retry")
		return
	}
	if reason := c.Query("error"); reason != "" {
		response.Error(c, http.StatusUnauthorized, "ACCESS_DENIED", "Google sign-in was cancelled")
		return
	}
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Missing authorization code")
		return
	}

	result, err := h.service.Complete(c.Request.Context(), code)
	if err != nil {
		log.Printf("auth_callback result=failed client_ip=%s err=%v", c.ClientIP(), err)
		switch {
		case errors.Is(err, ErrExchangeFailed), errors.Is(err, ErrMissingIdentity):
			response.Error(c, http.StatusUnauthorized, "LOGIN_FAILED", "Google sign-in failed")
		case errors.Is(err, ErrUserInfo):
			response.Error(c, http.StatusBadGateway, "LOGIN_FAILED", "Google is unavailable, please retry")
		default:
			response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to complete login")
		}
		return
	}

	log.Printf("auth_callback result=ok uid=%s role=%s", result.Profile.UID, result.Profile.Role)
	c.SetSameSite(parseSameSite(h.cookieSameSite))
	c.SetCookie(middleware.SessionCookie, result.SessionToken, h.sessionMaxAge, "/", "", h.cookieSecure, true)
	c.Redirect(http.StatusFound, h.successRedirect)
}

// Logout clears the session cookie; the JWT itself simply expires.
// @Summary		Déconnexion
// @Tags		Auth
// @Success		204	"Cookie de session supprimé"
// @Router		/auth/logout [POST]
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(parseSameSite(h.cookieSameSite))
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.cookieSecure, true)
	c.Status(http.StatusNoContent)
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func parseSameSite(mode string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
