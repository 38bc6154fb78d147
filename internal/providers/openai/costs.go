package openai

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/parsers"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

const (
	costsPath = "/v1/organization/costs"
	maxPages  = 20
	chunkDays = 7
)

type costResult struct {
	Amount struct {
		Value any `json:"value"`
	} `json:"amount"`
}

type costBucket struct {
	Results []costResult `json:"results"`
}

// costsPage is one page of GET /v1/organization/costs.
type costsPage struct {
	Data     []costBucket `json:"data"`
	HasMore  bool         `json:"has_more"`
	NextPage any          `json:"next_page"`
}

func (p costsPage) total() float64 {
	return lo.SumBy(p.Data, func(b costBucket) float64 {
		return lo.SumBy(b.Results, func(r costResult) float64 {
			if v := parsers.Number(r.Amount.Value); v != nil {
				return *v
			}
			return 0
		})
	})
}

// RangeResult is the outcome of aggregating spend over a date range.
type RangeResult struct {
	Total       float64
	Pages       int
	Truncated   bool
	SkippedDays []string
	// LastErr is the most recent error swallowed while skipping a day.
	LastErr error
}

func (r RangeResult) Partial() bool {
	return r.Truncated || len(r.SkippedDays) > 0
}

// CostFetcher reads organization cost buckets.
type CostFetcher struct {
	BaseURL string
	Client  *shared.Client
}

// FetchRange sums every cost bucket in [start, end], both inclusive calendar
// days, following pagination up to maxPages pages.
func (f *CostFetcher) FetchRange(ctx context.Context, adminKey, relayBase, start, end string) (RangeResult, error) {
	startUnix, endExclusive, err := core.DayBounds(start, end)
	if err != nil {
		return RangeResult{}, &core.ValidationError{Field: "range", Message: fmt.Sprintf("invalid date range %s..%s", start, end)}
	}

	base := f.baseURL()
	query := url.Values{}
	query.Set("start_time", strconv.FormatInt(startUnix, 10))
	query.Set("end_time", strconv.FormatInt(endExclusive, 10))
	next := base + costsPath + "?" + query.Encode()

	var res RangeResult
	for next != "" {
		if res.Pages >= maxPages {
			res.Truncated = true
			log.Printf("openai level=warn event=costs_truncated start=%s end=%s pages=%d", start, end, res.Pages)
			break
		}

		var page costsPage
		if err := f.client().GetJSON(ctx, next, relayBase, adminKey, &page); err != nil {
			log.Printf("openai level=warn event=costs_error start=%s end=%s page=%d err=%v", start, end, res.Pages, err)
			return res, err
		}
		res.Total += page.total()
		res.Pages++

		next = ""
		if cursor := parsers.String(page.NextPage); page.HasMore && cursor != "" {
			next = resolveNextPage(base, query, cursor)
		}
	}

	log.Printf("openai level=debug event=costs_range start=%s end=%s pages=%d total=%.4f", start, end, res.Pages, res.Total)
	return res, nil
}

// Aggregate computes spend for [start, end] and never fails: a failing
// whole-range request falls back to 7-day chunks, and a failing chunk falls
// back to one request per day, skipping days that still error.
func (f *CostFetcher) Aggregate(ctx context.Context, adminKey, relayBase, start, end string) RangeResult {
	res, err := f.FetchRange(ctx, adminKey, relayBase, start, end)
	if err == nil {
		return res
	}
	log.Printf("openai level=info event=costs_fallback_chunks start=%s end=%s err=%v", start, end, err)

	var out RangeResult
	for _, span := range core.ChunkDateRange(start, end, chunkDays) {
		chunk, err := f.FetchRange(ctx, adminKey, relayBase, span.Start, span.End)
		if err == nil {
			out.add(chunk)
			continue
		}
		log.Printf("openai level=info event=costs_fallback_days start=%s end=%s err=%v", span.Start, span.End, err)
		for _, day := range core.ListDatesInclusive(span.Start, span.End) {
			daily, err := f.FetchRange(ctx, adminKey, relayBase, day, day)
			if err != nil {
				log.Printf("openai level=warn event=costs_skip_day date=%s err=%v", day, err)
				out.SkippedDays = append(out.SkippedDays, day)
				out.LastErr = err
				continue
			}
			out.add(daily)
		}
	}
	return out
}

func (r *RangeResult) add(other RangeResult) {
	r.Total += other.Total
	r.Pages += other.Pages
	r.Truncated = r.Truncated || other.Truncated
	r.SkippedDays = append(r.SkippedDays, other.SkippedDays...)
	if other.LastErr != nil {
		r.LastErr = other.LastErr
	}
}

// resolveNextPage turns a next_page pointer into a vendor URL. The pointer
// may be an absolute URL, a path, a query string, or a bare cursor.
func resolveNextPage(base string, firstQuery url.Values, next string) string {
	next = strings.TrimSpace(next)
	lower := strings.ToLower(next)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return next
	case strings.HasPrefix(next, "/"):
		return base + next
	case strings.HasPrefix(next, "?"):
		return base + costsPath + next
	case strings.Contains(next, "="):
		return base + costsPath + "?" + next
	default:
		q := url.Values{}
		for k, v := range firstQuery {
			q[k] = append([]string(nil), v...)
		}
		q.Set("page", next)
		return base + costsPath + "?" + q.Encode()
	}
}

func (f *CostFetcher) baseURL() string {
	return shared.ResolveBaseURL(f.BaseURL, defaultBaseURL)
}

func (f *CostFetcher) client() *shared.Client {
	if f.Client == nil {
		return shared.NewClient()
	}
	return f.Client
}
