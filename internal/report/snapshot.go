package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-freshflow/internal/model"
	"go-freshflow/internal/repository"
)

// Snapshotter exports every party's ledger to a Store.
type Snapshotter struct {
	parties repository.PartyRepository
	batches repository.BatchRepository
	store   Store
	log     *zap.Logger
}

func NewSnapshotter(parties repository.PartyRepository, batches repository.BatchRepository, store Store, log *zap.Logger) *Snapshotter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Snapshotter{parties: parties, batches: batches, store: store, log: log}
}

// Run writes ledgers/<date>/<tier>-<party>.xlsx for each party and returns
// the stored locations. A failing party is logged and skipped.
func (s *Snapshotter) Run(ctx context.Context, now time.Time) ([]string, error) {
	parties, err := s.parties.FindAll(ctx, "")
	if err != nil {
		return nil, err
	}

	var written []string
	for i := range parties {
		p := &parties[i]
		loc, err := s.snapshot(ctx, p, now)
		if err != nil {
			s.log.Warn("ledger snapshot failed", zap.String("party", p.Name), zap.Error(err))
			continue
		}
		written = append(written, loc)
	}
	s.log.Info("ledger snapshots written", zap.Int("count", len(written)))
	return written, nil
}

func (s *Snapshotter) snapshot(ctx context.Context, p *model.Party, now time.Time) (string, error) {
	batches, err := s.batches.FindByParty(ctx, p.ID)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := WriteLedger(&buf, p, batches, now); err != nil {
		return "", err
	}
	key := fmt.Sprintf("ledgers/%s/%s-%s.xlsx", now.UTC().Format(dateLayout), p.Tier, slug(p.Name))
	return s.store.Put(ctx, key, xlsxContentType, buf.Bytes())
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
