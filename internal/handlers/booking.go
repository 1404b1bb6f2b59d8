package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hklaunchpad/site/internal/middleware"
	"github.com/hklaunchpad/site/internal/models"
	"github.com/hklaunchpad/site/internal/services/calendly"
	"github.com/hklaunchpad/site/internal/services/partner"
	"go.uber.org/zap"
)

// slotLayouts are the formats the booking form may submit
var slotLayouts = []string{"2006-01-02T15:04", time.RFC3339}

// BookPage renders the appointment booking form
func (h *Handler) BookPage(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "Book a Consultation")
	data["Services"] = models.Services
	data["Today"] = h.now().In(calendly.HongKong).Format("2006-01-02")
	h.render(w, "book.html", data)
}

// Book handles booking form submission
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, "/book?error=Invalid+request")
		return
	}

	slot, err := parseSlot(r.FormValue("slot"))
	if err != nil {
		h.redirect(w, r, "/book?error="+url.QueryEscape(models.ErrSlotRequired.Error()))
		return
	}

	appt := models.NewAppointment(
		r.FormValue("name"),
		r.FormValue("email"),
		models.Service(r.FormValue("service")),
		slot,
	)
	appt.Phone = strings.TrimSpace(r.FormValue("phone"))
	appt.CompanyName = strings.TrimSpace(r.FormValue("company_name"))
	appt.Notes = strings.TrimSpace(r.FormValue("notes"))

	if err := appt.Validate(h.now()); err != nil {
		h.redirect(w, r, "/book?error="+url.QueryEscape(err.Error()))
		return
	}

	tracker := middleware.GetTracker(r)
	if tracker != nil {
		if code, ok := tracker.GetReferralCode(); ok {
			p, err := h.partnerService.ResolvePartner(code)
			switch {
			case err == nil:
				appt.Attribute(p.ID, code)
			case errors.Is(err, partner.ErrUnknownReferralCode):
				// booked without attribution
			default:
				h.logger.Warn("failed to resolve referral partner", zap.String("referral_code", code), zap.Error(err))
			}
		}
	}

	if err := h.appointmentRepo.Create(appt); err != nil {
		h.logger.Error("failed to save appointment", zap.Error(err))
		h.redirect(w, r, "/book?error=Booking+failed,+please+try+again")
		return
	}
	countBooking(appt.IsAttributed())

	// A booking consumes the attribution.
	if tracker != nil {
		tracker.ClearReferralCode()
	}

	h.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID.String()),
		zap.String("service", string(appt.Service)),
		zap.Bool("attributed", appt.IsAttributed()),
	)
	h.redirect(w, r, "/book/thanks")
}

// BookThanks renders the booking confirmation page
func (h *Handler) BookThanks(w http.ResponseWriter, r *http.Request) {
	h.render(w, "book_thanks.html", h.pageData(r, "Thank You"))
}

// APIAvailability returns open consultation slots for a day as JSON
func (h *Handler) APIAvailability(w http.ResponseWriter, r *http.Request) {
	day := h.now().In(calendly.HongKong)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, calendly.HongKong)
		if err != nil {
			h.jsonError(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = parsed
	}

	slots, err := h.calendly.Availability(r.Context(), day)
	if err != nil {
		h.logger.Warn("availability lookup failed", zap.Error(err))
		h.jsonError(w, "Availability is temporarily unavailable", http.StatusBadGateway)
		return
	}

	source := "office-hours"
	if h.calendly.Configured() {
		source = "calendly"
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":   day.Format("2006-01-02"),
		"source": source,
		"slots":  slots,
	})
}

func parseSlot(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range slotLayouts {
		if t, err := time.ParseInLocation(layout, raw, calendly.HongKong); err == nil {
			return t, nil
		}
	}
	return time.Time{}, models.ErrSlotRequired
}
