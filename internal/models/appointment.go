package models

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service is an offering a visitor can book a consultation for
type Service string

const (
	ServiceIncorporation Service = "incorporation"
	ServiceSecretary     Service = "company-secretary"
	ServiceBankAccount   Service = "bank-account"
	ServiceAccounting    Service = "accounting"
)

// Services lists the bookable offerings in display order
var Services = []Service{ServiceIncorporation, ServiceSecretary, ServiceBankAccount, ServiceAccounting}

var (
	ErrNameRequired  = errors.New("name is required")
	ErrInvalidEmail  = errors.New("a valid email is required")
	ErrSlotRequired  = errors.New("preferred time is required")
	ErrSlotInPast    = errors.New("preferred time must be in the future")
	ErrInvalidOption = errors.New("unknown service")
)

// Appointment is a consultation request submitted through the booking form
type Appointment struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	CompanyName  string     `json:"company_name,omitempty"`
	Service      Service    `json:"service"`
	Slot         time.Time  `json:"slot"`
	Notes        string     `json:"notes,omitempty"`
	ReferralCode string     `json:"referral_code,omitempty"`
	PartnerID    *uuid.UUID `json:"partner_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewAppointment creates an appointment with generated ID and timestamp
func NewAppointment(name, email string, service Service, slot time.Time) *Appointment {
	return &Appointment{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		Service:   service,
		Slot:      slot.UTC(),
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the fields the booking form requires
func (a *Appointment) Validate(now time.Time) error {
	if a.Name == "" {
		return ErrNameRequired
	}
	if _, err := mail.ParseAddress(a.Email); err != nil {
		return ErrInvalidEmail
	}
	if a.Slot.IsZero() {
		return ErrSlotRequired
	}
	if !a.Slot.After(now) {
		return ErrSlotInPast
	}
	if !a.Service.IsValid() {
		return ErrInvalidOption
	}
	return nil
}

// Attribute links the appointment to the partner owning code
func (a *Appointment) Attribute(partnerID uuid.UUID, code string) {
	a.PartnerID = &partnerID
	a.ReferralCode = code
}

// IsAttributed reports whether a partner referred this appointment
func (a *Appointment) IsAttributed() bool {
	return a.PartnerID != nil
}

// IsValid reports whether s is a known service
func (s Service) IsValid() bool {
	for _, known := range Services {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns a human readable name for the service
func (s Service) Label() string {
	switch s {
	case ServiceIncorporation:
		return "Company Incorporation"
	case ServiceSecretary:
		return "Company Secretary"
	case ServiceBankAccount:
		return "Bank Account Opening"
	case ServiceAccounting:
		return "Accounting & Tax"
	default:
		return string(s)
	}
}
