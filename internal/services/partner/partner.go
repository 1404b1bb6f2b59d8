// Package partner aggregates referral visits and bookings for the partner
// dashboard and the admin statistics view.
package partner

import (
	"errors"
	"fmt"
	"time"

	"github.com/hklaunchpad/site/internal/models"
	"github.com/hklaunchpad/site/internal/services/calendly"
	"github.com/hklaunchpad/site/internal/storage"
)

// DashboardDays is the length of the visits-per-day series
const DashboardDays = 30

// ErrUnknownReferralCode means no partner owns the code
var ErrUnknownReferralCode = errors.New("unknown referral code")

// Service provides partner attribution and statistics
type Service struct {
	partners     *storage.PartnerRepository
	visits       *storage.VisitRepository
	appointments *storage.AppointmentRepository
	loc          *time.Location // day boundaries for the daily series
	now          func() time.Time
}

// NewService creates a new partner service
func NewService(partners *storage.PartnerRepository, visits *storage.VisitRepository, appointments *storage.AppointmentRepository) *Service {
	return &Service{
		partners:     partners,
		visits:       visits,
		appointments: appointments,
		loc:          calendly.HongKong,
		now:          time.Now,
	}
}

// ResolvePartner returns the partner owning code
func (s *Service) ResolvePartner(code string) (*models.Partner, error) {
	if !models.IsValidReferralCode(code) {
		return nil, ErrUnknownReferralCode
	}
	p, err := s.partners.GetByReferralCode(code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrUnknownReferralCode
	}
	return p, nil
}

// RecordVisit stores a referral landing for visitorHash. Repeat landings by the
// same visitor within models.VisitDedupWindow are acknowledged but not stored.
func (s *Service) RecordVisit(code, visitorHash string) (bool, error) {
	p, err := s.ResolvePartner(code)
	if err != nil {
		return false, err
	}

	visit := models.NewReferralVisit(p.ID, code, visitorHash)
	visit.CreatedAt = s.now().UTC()
	recorded, err := s.visits.RecordIfNew(visit, models.VisitDedupWindow)
	if err != nil {
		return false, fmt.Errorf("failed to record visit: %w", err)
	}
	return recorded, nil
}

// PartnerStats builds the dashboard figures for one partner
func (s *Service) PartnerStats(p *models.Partner) (*models.PartnerStats, error) {
	stats, err := s.totals(p)
	if err != nil {
		return nil, err
	}

	today := truncateDay(s.now(), s.loc)
	since := today.AddDate(0, 0, -(DashboardDays - 1))
	counts, err := s.visits.DailyCounts(p.ID, since, s.loc)
	if err != nil {
		return nil, err
	}
	stats.Daily = fillDays(counts, since, DashboardDays)

	return stats, nil
}

// SiteStats builds the admin view across every partner
func (s *Service) SiteStats() (*models.SiteStats, error) {
	partners, err := s.partners.List()
	if err != nil {
		return nil, err
	}

	site := &models.SiteStats{GeneratedAt: s.now().UTC()}
	for _, p := range partners {
		if p.IsAdmin() {
			continue
		}
		stats, err := s.totals(p)
		if err != nil {
			return nil, err
		}
		site.Partners = append(site.Partners, *stats)
	}

	site.TotalAppointments, err = s.appointments.Count()
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}

	site.CalculateTotals()
	return site, nil
}

// RecentAppointments lists the latest bookings a partner referred
func (s *Service) RecentAppointments(p *models.Partner, limit int) ([]*models.Appointment, error) {
	return s.appointments.ListByPartner(p.ID, limit)
}

func (s *Service) totals(p *models.Partner) (*models.PartnerStats, error) {
	visits, unique, err := s.visits.CountByPartner(p.ID)
	if err != nil {
		return nil, err
	}
	booked, err := s.appointments.CountByPartner(p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}

	stats := &models.PartnerStats{
		PartnerID:      p.ID,
		Name:           p.Name,
		ReferralCode:   p.ReferralCode,
		Visits:         visits,
		UniqueVisitors: unique,
		Appointments:   booked,
		Commission:     p.Commission,
	}
	stats.CalculateEarnings()
	return stats, nil
}

// fillDays returns one entry per day starting at since, zero-filling the gaps
func fillDays(counts []models.DailyCount, since time.Time, days int) []models.DailyCount {
	byDay := make(map[string]int, len(counts))
	for _, c := range counts {
		byDay[c.Day.Format("2006-01-02")] = c.Visits
	}

	out := make([]models.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i)
		out = append(out, models.DailyCount{Day: day, Visits: byDay[day.Format("2006-01-02")]})
	}
	return out
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
