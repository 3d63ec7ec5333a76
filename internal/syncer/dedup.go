package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/domain"
	"github.com/phamtuthu/appsflyer-to-clickhouse/internal/repository"
)

// ErrDedupQuery marks a failed existing-key lookup.
var ErrDedupQuery = errors.New("dedup query failed")

// DedupGate drops records whose natural key is already stored for the window
type DedupGate struct {
	repository repository.InstallRepository
	log        *zap.Logger
}

// NewDedupGate creates a new dedup gate
func NewDedupGate(repo repository.InstallRepository, log *zap.Logger) *DedupGate {
	return &DedupGate{
		repository: repo,
		log:        log,
	}
}

// Filter returns the records of set whose key is neither stored in the window nor repeated
// earlier in set, along with the number of records dropped.
func (g *DedupGate) Filter(ctx context.Context, window domain.TimeWindow, set *domain.RecordSet) (*domain.RecordSet, int, error) {
	existing, err := g.repository.ExistingKeys(ctx, window)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDedupQuery, err)
	}

	fresh := make([]domain.AttributionRecord, 0, set.Len())
	seen := make(map[string]struct{}, set.Len())
	for _, record := range set.Records {
		if _, ok := existing[record.AppsFlyerID]; ok {
			continue
		}
		if _, ok := seen[record.AppsFlyerID]; ok {
			continue
		}
		seen[record.AppsFlyerID] = struct{}{}
		fresh = append(fresh, record)
	}

	dropped := set.Len() - len(fresh)
	g.log.Debug("Filtered candidates against existing keys",
		zap.Int("existing", len(existing)),
		zap.Int("candidates", set.Len()),
		zap.Int("duplicates", dropped))

	return set.WithRecords(fresh), dropped, nil
}
