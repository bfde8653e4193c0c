// Package service derives session summaries from stored samples.
//
// Aggregation is authoritative-from-samples: the tracking_sessions table only
// contributes client-declared boundaries, so there is a single source of
// truth for every statistic and recomputation can never drift.
package service

import (
	"context"
	"sort"
	"time"

	sampledomain "wellness-at-work/backend/internal/sample/domain"
	"wellness-at-work/backend/internal/session/domain"
	sessionrepo "wellness-at-work/backend/internal/session/repository"
)

// SampleAggregates is the read-only slice of the sample store the aggregator
// needs. It never mutates samples.
type SampleAggregates interface {
	AggregateSessions(ctx context.Context, userID string) ([]*sampledomain.SessionAggregate, error)
	AggregateSession(ctx context.Context, userID, clientSessionID string) (*sampledomain.SessionAggregate, error)
	SummarizeRange(ctx context.Context, userID string, from, to *time.Time) (*sampledomain.RangeSummary, error)
}

// Aggregator computes per-session and per-user summaries on read.
type Aggregator struct {
	sessions sessionrepo.Repository
	samples  SampleAggregates
	timeout  time.Duration
}

// NewAggregator returns an Aggregator. storageTimeout bounds each storage call.
func NewAggregator(sessions sessionrepo.Repository, samples SampleAggregates, storageTimeout time.Duration) *Aggregator {
	if storageTimeout <= 0 {
		storageTimeout = 5 * time.Second
	}
	return &Aggregator{sessions: sessions, samples: samples, timeout: storageTimeout}
}

// SessionSummaries returns the user's sessions, newest first, with derived
// aggregates. The set is the union of declared sessions and sessions that
// only exist as tagged samples. limit <= 0 means no limit.
func (a *Aggregator) SessionSummaries(ctx context.Context, userID string, limit, offset int) ([]*domain.Summary, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	declared, err := a.sessions.ListByUser(callCtx, userID)
	if err != nil {
		return nil, err
	}
	aggs, err := a.samples.AggregateSessions(callCtx, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Summary, len(declared)+len(aggs))
	order := make([]string, 0, len(declared)+len(aggs))
	for _, d := range declared {
		byID[d.ClientSessionID] = summaryFromDeclared(d)
		order = append(order, d.ClientSessionID)
	}
	for _, agg := range aggs {
		sum, ok := byID[agg.ClientSessionID]
		if !ok {
			sum = &domain.Summary{ClientSessionID: agg.ClientSessionID}
			byID[agg.ClientSessionID] = sum
			order = append(order, agg.ClientSessionID)
		}
		applyAggregate(sum, agg)
	}

	out := make([]*domain.Summary, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ClientSessionID < out[j].ClientSessionID
	})

	if offset > 0 {
		if offset >= len(out) {
			return []*domain.Summary{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SessionSummary returns the summary for one session. A session with neither
// a declaration nor samples yields a zero summary, never an error, so "no
// data yet" is not a fault.
func (a *Aggregator) SessionSummary(ctx context.Context, userID, clientSessionID string) (*domain.Summary, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	declared, err := a.sessions.GetByID(callCtx, userID, clientSessionID)
	if err != nil {
		return nil, err
	}
	agg, err := a.samples.AggregateSession(callCtx, userID, clientSessionID)
	if err != nil {
		return nil, err
	}

	var sum *domain.Summary
	if declared != nil {
		sum = summaryFromDeclared(declared)
	} else {
		sum = &domain.Summary{ClientSessionID: clientSessionID}
	}
	if agg != nil {
		applyAggregate(sum, agg)
	}
	return sum, nil
}

// Overall aggregates across all of the user's data, optionally date-filtered.
// The date filter applies to every number in the result: sample-derived totals
// come from the range query, and only sessions whose interval overlaps the
// range are counted.
func (a *Aggregator) Overall(ctx context.Context, userID string, from, to *time.Time) (*domain.OverallSummary, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rangeSum, err := a.samples.SummarizeRange(callCtx, userID, from, to)
	if err != nil {
		return nil, err
	}
	summaries, err := a.SessionSummaries(ctx, userID, 0, 0)
	if err != nil {
		return nil, err
	}
	var sessions int64
	for _, s := range summaries {
		if overlapsRange(s, from, to) {
			sessions++
		}
	}
	return &domain.OverallSummary{
		TotalBlinks:   rangeSum.TotalBlinks,
		TotalSessions: sessions,
		TotalSamples:  rangeSum.SampleCount,
		AvgCPUPercent: rangeSum.AvgCPUPercent,
		AvgMemoryMB:   rangeSum.AvgMemoryMB,
	}, nil
}

// overlapsRange reports whether the session's interval intersects [from, to].
// A session with no end yet spans only its start for this check.
func overlapsRange(s *domain.Summary, from, to *time.Time) bool {
	end := s.StartedAt
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if from != nil && end.Before(*from) {
		return false
	}
	if to != nil && s.StartedAt.After(*to) {
		return false
	}
	return true
}

func summaryFromDeclared(d *domain.Session) *domain.Summary {
	return &domain.Summary{
		ClientSessionID:     d.ClientSessionID,
		DeviceID:            d.DeviceID,
		AppVersion:          d.AppVersion,
		StartedAt:           d.StartedAt,
		EndedAt:             d.EndedAt,
		DeclaredTotalBlinks: d.DeclaredTotalBlinks,
	}
}

// applyAggregate folds sample-derived values into the summary. Boundaries fall
// back to the sample min/max; a client-declared ended_at wins because the
// device may stop sampling before the user explicitly ends the session.
func applyAggregate(sum *domain.Summary, agg *sampledomain.SessionAggregate) {
	sum.TotalBlinks = agg.TotalBlinks
	sum.SampleCount = agg.SampleCount
	sum.AvgCPUPercent = agg.AvgCPUPercent
	sum.AvgMemoryMB = agg.AvgMemoryMB
	sum.StartedAt = agg.FirstCapturedAt
	if sum.EndedAt == nil {
		last := agg.LastCapturedAt
		sum.EndedAt = &last
	}
}
