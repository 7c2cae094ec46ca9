package services

import (
	"context"
	"log"
	"time"

	"github.com/peyvandapp/peyvand-backend/internal/models"
)

// BanLister is the slice of the user directory the sweeper needs.
type BanLister interface {
	ListExpiredBans(ctx context.Context, now time.Time) ([]string, error)
	ClearExpiredBan(ctx context.Context, id string, now time.Time) (bool, error)
}

// WarningLister finds and resolves warnings whose grace period passed.
type WarningLister interface {
	ExpiredWarnings(ctx context.Context, now time.Time) ([]models.Report, error)
	ResolveWarning(ctx context.Context, id string, now time.Time, resolution string) error
}

// SweepSummary counts what one sweep cleaned up.
type SweepSummary struct {
	ExpiredBans     int `json:"expired_bans"`
	ExpiredWarnings int `json:"expired_warnings"`
}

// Sweeper periodically lifts expired temporary bans and resolves
// expired warnings. Each item is handled independently: one failure is
// logged and the sweep moves on, so a bad record never blocks the rest.
type Sweeper struct {
	Users    BanLister
	Reports  WarningLister
	Interval time.Duration

	Now func() time.Time
}

func NewSweeper(users BanLister, reports WarningLister, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{Users: users, Reports: reports, Interval: interval}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run sweeps once immediately, then on every tick until the context is
// canceled. Meant to be launched as a goroutine at boot.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("✅ Expiry sweeper started (interval: %s)", s.Interval)

	if _, err := s.Sweep(ctx); err != nil {
		log.Printf("⚠️ Initial sweep failed: %v", err)
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Printf("⚠️ Sweep failed: %v", err)
			}
		}
	}
}

// Sweep runs both passes once and returns what was cleaned up. Calling
// it again immediately finds nothing left to do.
func (s *Sweeper) Sweep(ctx context.Context) (SweepSummary, error) {
	now := s.now()
	var summary SweepSummary

	userIDs, err := s.Users.ListExpiredBans(ctx, now)
	if err != nil {
		return summary, err
	}
	for _, userID := range userIDs {
		cleared, err := s.Users.ClearExpiredBan(ctx, userID, now)
		if err != nil {
			log.Printf("failed to lift expired ban for user %s: %v", userID, err)
			continue
		}
		if cleared {
			summary.ExpiredBans++
			log.Printf("ban lifted: user=%s", userID)
		}
	}

	warnings, err := s.Reports.ExpiredWarnings(ctx, now)
	if err != nil {
		return summary, err
	}
	for _, warning := range warnings {
		err := s.Reports.ResolveWarning(ctx, warning.ID.Hex(), now, models.ResolutionExpired)
		if err != nil {
			// A warning escalated between the query and this update is
			// already resolved; anything else is worth a log line.
			log.Printf("failed to resolve expired warning %s: %v", warning.ID.Hex(), err)
			continue
		}
		summary.ExpiredWarnings++
	}

	if summary.ExpiredBans > 0 || summary.ExpiredWarnings > 0 {
		log.Printf("sweep complete: bans_lifted=%d warnings_expired=%d", summary.ExpiredBans, summary.ExpiredWarnings)
	}

	return summary, nil
}
