package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DailyCount is the number of visits on one calendar day in the site's zone
type DailyCount struct {
	Day    time.Time `json:"day"`
	Visits int       `json:"visits"`
}

// PartnerStats aggregates attribution results for one partner
type PartnerStats struct {
	PartnerID      uuid.UUID       `json:"partner_id"`
	Name           string          `json:"name"`
	ReferralCode   string          `json:"referral_code"`
	Visits         int             `json:"visits"`
	UniqueVisitors int             `json:"unique_visitors"`
	Appointments   int             `json:"appointments"`
	Commission     decimal.Decimal `json:"commission"`
	Earned         decimal.Decimal `json:"earned"`
	ConversionRate decimal.Decimal `json:"conversion_rate"` // percent of unique visitors who booked
	Daily          []DailyCount    `json:"daily,omitempty"`
}

// CalculateEarnings derives Earned and ConversionRate from the raw counts
func (s *PartnerStats) CalculateEarnings() {
	s.Earned = s.Commission.Mul(decimal.NewFromInt(int64(s.Appointments)))

	s.ConversionRate = decimal.Zero
	if s.UniqueVisitors > 0 {
		s.ConversionRate = decimal.NewFromInt(int64(s.Appointments)).
			Div(decimal.NewFromInt(int64(s.UniqueVisitors))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
}

// SiteStats is the admin view across all partners
type SiteStats struct {
	TotalVisits            int             `json:"total_visits"`
	TotalAppointments      int             `json:"total_appointments"`
	AttributedAppointments int             `json:"attributed_appointments"`
	TotalEarned            decimal.Decimal `json:"total_earned"`
	Partners               []PartnerStats  `json:"partners"`
	GeneratedAt            time.Time       `json:"generated_at"`
}

// CalculateTotals sums partner figures into the site totals
func (s *SiteStats) CalculateTotals() {
	s.TotalVisits = 0
	s.AttributedAppointments = 0
	s.TotalEarned = decimal.Zero
	for i := range s.Partners {
		p := &s.Partners[i]
		p.CalculateEarnings()
		s.TotalVisits += p.Visits
		s.AttributedAppointments += p.Appointments
		s.TotalEarned = s.TotalEarned.Add(p.Earned)
	}
}
