// Package referral captures partner referral codes from landing URLs, keeps
// them in the visitor's session and persistent stores, and reports them to the
// partner backend.
package referral

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/hklaunchpad/site/internal/models"
	"go.uber.org/zap"
)

const (
	// QueryParam carries an incoming referral code on any page URL
	QueryParam = "ref"
	// StorageKey names the code in both stores
	StorageKey = "referralCode"
	// PersistentTTL is how long the durable copy survives
	PersistentTTL = 7 * 24 * time.Hour
)

// ErrInvalidCode is returned by Track for codes that fail Validate
var ErrInvalidCode = errors.New("invalid referral code")

// Validate reports whether code is a well-formed referral code. Matching is
// exact: no trimming, no case folding.
func Validate(code string) bool {
	return models.IsValidReferralCode(code)
}

// Tracker runs referral attribution for one browsing context.
//
// Overlapping Track calls are not ordered; whichever finishes last decides
// what each store holds.
type Tracker struct {
	store    Store
	reporter Reporter
	logger   *zap.Logger

	mu     sync.RWMutex
	params url.Values
}

// NewTracker creates a tracker over store that reports through reporter
func NewTracker(store Store, reporter Reporter, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:    store,
		reporter: reporter,
		logger:   logger,
	}
}

// OnNavigationParamsChanged must be called by the host whenever the current
// page's query parameters change. A valid ref parameter starts a Track in the
// background; the returned channel closes when it finishes, or immediately
// when there is nothing to track. The attempt outlives ctx cancellation.
func (t *Tracker) OnNavigationParamsChanged(ctx context.Context, params url.Values) <-chan struct{} {
	t.mu.Lock()
	t.params = copyValues(params)
	t.mu.Unlock()

	done := make(chan struct{})
	code := params.Get(QueryParam)
	if !Validate(code) {
		close(done)
		return done
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(done)
		// Failures are rolled back and logged inside Track.
		_ = t.Track(ctx, code)
	}()
	return done
}

// Track writes code through to both stores and reports it. When either step
// fails both stores are cleared, the failure is logged, and the error is
// returned. Nothing is retried.
func (t *Tracker) Track(ctx context.Context, code string) error {
	if !Validate(code) {
		return ErrInvalidCode
	}

	if err := t.persist(code); err != nil {
		t.rollback(code, err)
		trackTotal.WithLabelValues(resultStorageError).Inc()
		return err
	}

	if err := t.reporter.Report(ctx, code); err != nil {
		t.rollback(code, err)
		trackTotal.WithLabelValues(resultReportError).Inc()
		return err
	}

	trackTotal.WithLabelValues(resultReported).Inc()
	t.logger.Debug("referral tracked", zap.String("referral_code", code))
	return nil
}

// GetReferralCode returns the first code found in the current ref parameter,
// the session store, then the persistent store. The ref parameter is returned
// as-is, even when it never validated.
func (t *Tracker) GetReferralCode() (string, bool) {
	t.mu.RLock()
	ref := t.params.Get(QueryParam)
	t.mu.RUnlock()
	if ref != "" {
		return ref, true
	}

	if v, ok := t.store.GetSession(StorageKey); ok && v != "" {
		return v, true
	}
	if v, ok := t.store.GetPersistent(StorageKey); ok && v != "" {
		return v, true
	}
	return "", false
}

// ClearReferralCode removes the code from both stores. Safe to repeat.
func (t *Tracker) ClearReferralCode() {
	t.clearStores()
}

func (t *Tracker) persist(code string) error {
	if err := t.store.SetSession(StorageKey, code); err != nil {
		return fmt.Errorf("failed to store session referral code: %w", err)
	}
	if err := t.store.SetPersistent(StorageKey, code, PersistentTTL); err != nil {
		return fmt.Errorf("failed to store persistent referral code: %w", err)
	}
	return nil
}

func (t *Tracker) rollback(code string, cause error) {
	t.clearStores()
	t.logger.Error("referral tracking failed",
		zap.String("referral_code", code),
		zap.Error(cause),
	)
}

func (t *Tracker) clearStores() {
	if err := t.store.ClearSession(StorageKey); err != nil {
		t.logger.Warn("failed to clear session referral code", zap.Error(err))
	}
	if err := t.store.ClearPersistent(StorageKey); err != nil {
		t.logger.Warn("failed to clear persistent referral code", zap.Error(err))
	}
}

func copyValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
