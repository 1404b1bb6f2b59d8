package middleware

import (
	"context"
	"net/http"

	"github.com/hklaunchpad/site/internal/services/referral"
	"go.uber.org/zap"
)

// Referral binds a referral tracker to every request's cookies and feeds it
// the query parameters of page navigations.
type Referral struct {
	reporter   referral.Reporter
	logger     *zap.Logger
	secure     bool
	trustProxy bool
}

// NewReferral creates the referral middleware. secure marks the referral
// cookies Secure; trustProxy controls how the visitor IP is derived.
func NewReferral(reporter referral.Reporter, logger *zap.Logger, secure, trustProxy bool) *Referral {
	return &Referral{
		reporter:   reporter,
		logger:     logger,
		secure:     secure,
		trustProxy: trustProxy,
	}
}

// Track runs attribution before the wrapped handler. Tracking has to finish
// first because its outcome is written as Set-Cookie headers.
func (m *Referral) Track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store := referral.NewCookieStore(w, r, m.secure)
		tracker := referral.NewTracker(store, m.reporter, m.logger)

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			ctx := referral.WithVisitor(r.Context(), referral.Visitor{
				IP:        ClientIP(r, m.trustProxy),
				UserAgent: r.UserAgent(),
			})
			<-tracker.OnNavigationParamsChanged(ctx, r.URL.Query())
		}

		ctx := context.WithValue(r.Context(), TrackerContextKey, tracker)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTracker retrieves the request's referral tracker
func GetTracker(r *http.Request) *referral.Tracker {
	tracker, ok := r.Context().Value(TrackerContextKey).(*referral.Tracker)
	if !ok {
		return nil
	}
	return tracker
}
