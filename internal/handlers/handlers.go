// Package handlers provides HTTP request handlers
package handlers

import (
	"encoding/json"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/hklaunchpad/site/internal/config"
	"github.com/hklaunchpad/site/internal/middleware"
	"github.com/hklaunchpad/site/internal/models"
	"github.com/hklaunchpad/site/internal/services/auth"
	"github.com/hklaunchpad/site/internal/services/calendly"
	"github.com/hklaunchpad/site/internal/services/partner"
	"github.com/hklaunchpad/site/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler contains all HTTP handlers and dependencies
type Handler struct {
	cfg             *config.Config
	templates       *template.Template
	logger          *zap.Logger
	authService     *auth.Service
	partnerService  *partner.Service
	calendly        *calendly.Service
	appointmentRepo *storage.AppointmentRepository
	now             func() time.Time
}

// New creates a new handler with all dependencies
func New(
	cfg *config.Config,
	templateDir string,
	logger *zap.Logger,
	authService *auth.Service,
	partnerService *partner.Service,
	calendlyService *calendly.Service,
	appointmentRepo *storage.AppointmentRepository,
) (*Handler, error) {
	// Parse all templates
	pattern := filepath.Join(templateDir, "**", "*.html")
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseGlob(pattern)
	if err != nil {
		// Try alternative pattern
		tmpl, err = parseTemplates(templateDir)
		if err != nil {
			return nil, err
		}
	}

	return &Handler{
		cfg:             cfg,
		templates:       tmpl,
		logger:          logger,
		authService:     authService,
		partnerService:  partnerService,
		calendly:        calendlyService,
		appointmentRepo: appointmentRepo,
		now:             time.Now,
	}, nil
}

func parseTemplates(dir string) (*template.Template, error) {
	tmpl := template.New("").Funcs(templateFuncs())

	// Parse layouts
	layouts, _ := filepath.Glob(filepath.Join(dir, "layouts", "*.html"))
	for _, f := range layouts {
		if _, err := tmpl.ParseFiles(f); err != nil {
			return nil, err
		}
	}

	// Parse pages
	pages, _ := filepath.Glob(filepath.Join(dir, "pages", "*.html"))
	for _, f := range pages {
		if _, err := tmpl.ParseFiles(f); err != nil {
			return nil, err
		}
	}

	return tmpl, nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatMoney":   formatMoney,
		"formatPercent": formatPercent,
		"formatDate":    func(t time.Time) string { return t.Format("2 Jan 2006") },
		"formatSlot":    func(t time.Time) string { return t.In(calendly.HongKong).Format("Mon 2 Jan 2006, 15:04") },
		"serviceLabel":  func(s models.Service) string { return s.Label() },
	}
}

func formatMoney(d decimal.Decimal) string {
	d = d.Round(2)
	whole := d.Truncate(0).Abs().String()
	cents := d.Abs().Sub(d.Abs().Truncate(0)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	var b strings.Builder
	if d.IsNegative() {
		b.WriteString("-")
	}
	b.WriteString("HK$")
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(".")
	if cents < 10 {
		b.WriteString("0")
	}
	b.WriteString(decimal.NewFromInt(cents).String())
	return b.String()
}

func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

// pageData seeds template data shared by every page
func (h *Handler) pageData(r *http.Request, title string) map[string]interface{} {
	data := map[string]interface{}{
		"Title":   title + " - HK Launchpad",
		"Error":   r.URL.Query().Get("error"),
		"Partner": middleware.GetPartner(r),
	}
	if tracker := middleware.GetTracker(r); tracker != nil {
		if code, ok := tracker.GetReferralCode(); ok {
			data["ReferralCode"] = code
		}
	}
	return data
}

// render renders a template with the given data
func (h *Handler) render(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("template render failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// redirect performs an HTTP redirect
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// writeJSON writes v as a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// jsonError writes a JSON error response
func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
