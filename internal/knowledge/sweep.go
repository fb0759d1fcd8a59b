package knowledge

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// SweepReport summarizes one maintenance pass.
type SweepReport struct {
	// Recovered counts pending entries that reached ready.
	Recovered int `json:"recovered"`

	// Purged counts pending entries deleted after exhausting their
	// embed attempts.
	Purged int `json:"purged"`

	// StillPending counts entries that failed again but keep their
	// remaining attempts.
	StillPending int `json:"still_pending"`

	// VectorsCleared counts tombstoned entries whose vectors were
	// removed from the index.
	VectorsCleared int `json:"vectors_cleared"`
}

// Sweep is the maintenance pass over non-ready entries. Pending entries
// get another embed attempt; ones that exhausted the configured attempt
// budget are purged. Tombstoned entries get their leftover vectors
// cleared. The pass keeps going past individual failures so one bad
// entry cannot starve the rest.
func (s *Service) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	pending, err := s.store.ListEntriesByStatus(ctx, domain.EntryPending)
	if err != nil {
		return nil, domain.WrapError(domain.KindStorage, err, "listing pending entries")
	}
	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return report, domain.WrapError(domain.KindCancelled, err, "sweep interrupted")
		}
		attempts, err := s.store.IncrementEntryAttempts(ctx, entry.ID)
		if err != nil {
			s.logger.Warn("skipping pending entry", zap.String("entry_id", entry.ID), zap.Error(err))
			continue
		}
		if attempts > s.config.SweepMaxAttempts {
			if err := s.store.DeleteEntry(ctx, entry.ID); err != nil {
				s.logger.Warn("purging pending entry failed",
					zap.String("entry_id", entry.ID), zap.Error(err))
				continue
			}
			s.logger.Info("pending entry purged after exhausting embed attempts",
				zap.String("entry_id", entry.ID), zap.Int("attempts", attempts))
			report.Purged++
			continue
		}
		if err := s.embedAndIndex(ctx, entry); err != nil {
			s.logger.Warn("pending entry still failing",
				zap.String("entry_id", entry.ID),
				zap.Int("attempts", attempts),
				zap.Error(err))
			report.StillPending++
			continue
		}
		report.Recovered++
	}

	tombstoned, err := s.store.ListEntriesByStatus(ctx, domain.EntryTombstoned)
	if err != nil {
		return report, domain.WrapError(domain.KindStorage, err, "listing tombstoned entries")
	}
	if len(tombstoned) > 0 {
		ids := entryIDs(tombstoned)
		if err := s.index.Delete(ctx, ids...); err != nil {
			s.logger.Warn("clearing tombstoned vectors failed", zap.Error(err))
		} else {
			report.VectorsCleared = len(ids)
		}
	}

	s.logger.Info("knowledge sweep finished",
		zap.Int("recovered", report.Recovered),
		zap.Int("purged", report.Purged),
		zap.Int("still_pending", report.StillPending),
		zap.Int("vectors_cleared", report.VectorsCleared))
	return report, nil
}
