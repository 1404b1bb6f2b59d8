package handlers

import (
	"net/http"
)

// FAQ is one question on the FAQ page
type FAQ struct {
	Question string
	Answer   string
}

var faqs = []FAQ{
	{"How long does it take to incorporate a Hong Kong company?", "Most companies are registered within 1 to 3 business days once the Companies Registry receives complete documents."},
	{"Do I need to live in Hong Kong?", "No. Directors and shareholders may be of any nationality and reside anywhere. A local company secretary and registered address are required, and we provide both."},
	{"What is the minimum share capital?", "There is no minimum. Most clients start with HK$10,000 divided into 10,000 shares."},
	{"Can you help open a bank account?", "Yes. We prepare the account opening pack and arrange introductions with partner banks and virtual banks."},
	{"What ongoing obligations are there?", "An annual return, business registration renewal, audited accounts and a profits tax return. Our secretary and accounting plans cover each of these."},
}

// Home renders the landing page
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.NotFound(w, r)
		return
	}
	data := h.pageData(r, "Hong Kong Company Incorporation")
	h.render(w, "home.html", data)
}

// FAQPage renders frequently asked questions
func (h *Handler) FAQPage(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "FAQ")
	data["FAQs"] = faqs
	h.render(w, "faq.html", data)
}

// ContactPage renders contact details
func (h *Handler) ContactPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "contact.html", h.pageData(r, "Contact"))
}

// MapPage renders the office location
func (h *Handler) MapPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "map.html", h.pageData(r, "Find Us"))
}

// NotFound renders the 404 page
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	h.render(w, "not_found.html", h.pageData(r, "Not Found"))
}
