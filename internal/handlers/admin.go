package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hklaunchpad/site/internal/services/auth"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreatePartnerInput is the body accepted by APICreatePartner
type CreatePartnerInput struct {
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Password   string           `json:"password"`
	Commission *decimal.Decimal `json:"commission,omitempty"`
}

// AdminStats renders the admin statistics view
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	site, err := h.partnerService.SiteStats()
	if err != nil {
		h.logger.Error("failed to load site stats", zap.Error(err))
		http.Error(w, "Failed to load statistics", http.StatusInternalServerError)
		return
	}

	data := h.pageData(r, "Statistics")
	data["Site"] = site
	h.render(w, "admin_stats.html", data)
}

// APIAdminStats returns site statistics as JSON
func (h *Handler) APIAdminStats(w http.ResponseWriter, r *http.Request) {
	site, err := h.partnerService.SiteStats()
	if err != nil {
		h.logger.Error("failed to load site stats", zap.Error(err))
		h.jsonError(w, "Failed to load statistics", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, site)
}

// APICreatePartner registers a new partner and returns it with its referral code
func (h *Handler) APICreatePartner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input CreatePartnerInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Name == "" || input.Email == "" {
		h.jsonError(w, "Name and email are required", http.StatusBadRequest)
		return
	}

	p, err := h.authService.Register(auth.RegisterInput{
		Email:      input.Email,
		Password:   input.Password,
		Name:       input.Name,
		Commission: input.Commission,
	})
	switch {
	case errors.Is(err, auth.ErrEmailExists):
		h.jsonError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, auth.ErrWeakPassword):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("failed to create partner", zap.Error(err))
		h.jsonError(w, "Failed to create partner", http.StatusInternalServerError)
		return
	}

	h.logger.Info("partner created", zap.String("partner_id", p.ID.String()), zap.String("referral_code", p.ReferralCode))
	h.writeJSON(w, http.StatusCreated, p)
}
