package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hklaunchpad/site/internal/middleware"
	"github.com/hklaunchpad/site/internal/models"
	"github.com/hklaunchpad/site/internal/services/partner"
	"github.com/hklaunchpad/site/internal/services/referral"
	"go.uber.org/zap"
)

// recentAppointments is how many bookings the dashboard lists
const recentAppointments = 20

// TrackReferral records a referral landing reported by the attribution tracker
func (h *Handler) TrackReferral(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req referral.TrackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		h.jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !referral.Validate(req.ReferralCode) {
		h.jsonError(w, "Invalid referral code", http.StatusBadRequest)
		return
	}

	visitor := models.HashVisitor(middleware.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
	recorded, err := h.partnerService.RecordVisit(req.ReferralCode, visitor)
	if errors.Is(err, partner.ErrUnknownReferralCode) {
		h.jsonError(w, "Unknown referral code", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to record referral visit", zap.String("referral_code", req.ReferralCode), zap.Error(err))
		h.jsonError(w, "Failed to record referral", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"recorded": recorded,
	})
}

// Dashboard renders the partner dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPartner(r)
	if p == nil {
		h.redirect(w, r, "/partner/login")
		return
	}

	stats, appointments, err := h.dashboardData(p)
	if err != nil {
		h.logger.Error("failed to load dashboard", zap.Error(err))
		http.Error(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}

	data := h.pageData(r, "Partner Dashboard")
	data["Stats"] = stats
	data["Appointments"] = appointments
	data["ReferralLink"] = "/?" + referral.QueryParam + "=" + p.ReferralCode
	h.render(w, "dashboard.html", data)
}

// APIDashboard returns the partner dashboard figures as JSON
func (h *Handler) APIDashboard(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPartner(r)
	if p == nil {
		h.jsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	stats, appointments, err := h.dashboardData(p)
	if err != nil {
		h.logger.Error("failed to load dashboard", zap.Error(err))
		h.jsonError(w, "Failed to load dashboard", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":        stats,
		"appointments": appointments,
	})
}

func (h *Handler) dashboardData(p *models.Partner) (*models.PartnerStats, []*models.Appointment, error) {
	stats, err := h.partnerService.PartnerStats(p)
	if err != nil {
		return nil, nil, err
	}
	appointments, err := h.partnerService.RecentAppointments(p, recentAppointments)
	if err != nil {
		return nil, nil, err
	}
	return stats, appointments, nil
}
