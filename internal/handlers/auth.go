package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/hklaunchpad/site/internal/middleware"
	"github.com/hklaunchpad/site/internal/services/auth"
	"go.uber.org/zap"
)

// LoginPage renders the partner login page
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to dashboard
	if partner := middleware.GetPartner(r); partner != nil {
		h.redirect(w, r, "/partner/dashboard")
		return
	}

	h.render(w, "login.html", h.pageData(r, "Partner Login"))
}

// Login handles login form submission
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/partner/login?error=Invalid+request")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	if email == "" || password == "" {
		h.redirect(w, r, "/partner/login?error=Email+and+password+required")
		return
	}

	result, err := h.authService.Login(auth.LoginInput{
		Email:    email,
		Password: password,
	})
	if err != nil {
		if err != auth.ErrInvalidCredentials {
			h.logger.Error("partner login failed", zap.Error(err))
		}
		h.redirect(w, r, "/partner/login?error=Invalid+credentials")
		return
	}

	// Set session cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    result.Token,
		Path:     "/",
		Expires:  result.Expires,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	if result.Partner.IsAdmin() {
		h.redirect(w, r, "/admin/stats")
		return
	}
	h.redirect(w, r, "/partner/dashboard")
}

// Logout handles partner logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	partner := middleware.GetPartner(r)
	if partner != nil {
		if err := h.authService.Logout(partner.ID); err != nil {
			h.logger.Warn("failed to revoke sessions", zap.Error(err))
		}
	}

	// Clear session cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})

	h.redirect(w, r, "/partner/login")
}
