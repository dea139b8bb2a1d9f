package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brunopk/paycore/internal/storage/ledgerdb"
)

type LedgerRepository struct {
	b backend
}

func (r *LedgerRepository) InsertEntry(ctx context.Context, entry *ledgerdb.LedgerEntry) error {
	return r.b.mutate(func(s *store) error {
		cp := *entry
		cp.Lines = append([]ledgerdb.LedgerLine(nil), entry.Lines...)
		s.entries = append(s.entries, &cp)
		return nil
	})
}

func (r *LedgerRepository) ListEntries(ctx context.Context, tenantID string, from, to *time.Time, limit int) ([]ledgerdb.LedgerEntry, error) {
	var results []ledgerdb.LedgerEntry
	err := r.b.view(func(s *store) error {
		for _, e := range s.entries {
			if e.TenantID != tenantID {
				continue
			}
			if from != nil && e.PostedAt.Before(*from) {
				continue
			}
			if to != nil && e.PostedAt.After(*to) {
				continue
			}
			cp := *e
			cp.Lines = append([]ledgerdb.LedgerLine(nil), e.Lines...)
			results = append(results, cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].PostedAt.After(results[j].PostedAt) })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func truncatePeriod(t time.Time, granularity string) time.Time {
	t = t.UTC()
	switch granularity {
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case "week":
		// ISO week starts Monday.
		weekday := (int(t.Weekday()) + 6) % 7
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return d.AddDate(0, 0, -weekday)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func (r *LedgerRepository) RevenueByPeriod(ctx context.Context, tenantID, granularity string, from, to *time.Time) ([]ledgerdb.RevenueRow, error) {
	type key struct {
		period   time.Time
		currency string
	}
	totals := make(map[key]decimal.Decimal)

	err := r.b.view(func(s *store) error {
		for _, e := range s.entries {
			if e.TenantID != tenantID {
				continue
			}
			if from != nil && e.PostedAt.Before(*from) {
				continue
			}
			if to != nil && e.PostedAt.After(*to) {
				continue
			}
			for _, l := range e.Lines {
				if l.Side != ledgerdb.SideCredit || l.Account != ledgerdb.AccountRevenue {
					continue
				}
				k := key{truncatePeriod(e.PostedAt, granularity), l.Currency}
				totals[k] = totals[k].Add(l.Amount)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]ledgerdb.RevenueRow, 0, len(totals))
	for k, total := range totals {
		results = append(results, ledgerdb.RevenueRow{Period: k.period, Currency: k.currency, Total: total})
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].Period.Equal(results[j].Period) {
			return results[i].Period.Before(results[j].Period)
		}
		return results[i].Currency < results[j].Currency
	})
	return results, nil
}

func (r *LedgerRepository) AccountBalances(ctx context.Context, tenantID string, from, to *time.Time) ([]ledgerdb.BalanceRow, error) {
	type key struct {
		account  string
		currency string
	}
	type sums struct {
		debits  decimal.Decimal
		credits decimal.Decimal
	}
	totals := make(map[key]*sums)

	err := r.b.view(func(s *store) error {
		for _, e := range s.entries {
			if e.TenantID != tenantID {
				continue
			}
			if from != nil && e.PostedAt.Before(*from) {
				continue
			}
			if to != nil && e.PostedAt.After(*to) {
				continue
			}
			for _, l := range e.Lines {
				k := key{l.Account, l.Currency}
				t, ok := totals[k]
				if !ok {
					t = &sums{}
					totals[k] = t
				}
				if l.Side == ledgerdb.SideDebit {
					t.debits = t.debits.Add(l.Amount)
				} else {
					t.credits = t.credits.Add(l.Amount)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]ledgerdb.BalanceRow, 0, len(totals))
	for k, t := range totals {
		results = append(results, ledgerdb.BalanceRow{
			Account:      k.account,
			Currency:     k.currency,
			DebitsTotal:  t.debits,
			CreditsTotal: t.credits,
			Balance:      t.credits.Sub(t.debits),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Account != results[j].Account {
			return results[i].Account < results[j].Account
		}
		return results[i].Currency < results[j].Currency
	})
	return results, nil
}
