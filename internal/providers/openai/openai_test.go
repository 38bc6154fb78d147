package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/janekbaraniewski/spendboard/internal/core"
	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

// dayCost is the deterministic spend the fake API reports for one day.
func dayCost(day time.Time) float64 {
	return float64(day.YearDay()%7) + 0.25
}

// costsServer answers /v1/organization/costs with one bucket per day in the
// requested window. fail decides whether a window should error.
func costsServer(t *testing.T, fail func(start, end time.Time) bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer sk-admin" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/organization/costs" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s, _ := strconv.ParseInt(r.URL.Query().Get("start_time"), 10, 64)
		e, _ := strconv.ParseInt(r.URL.Query().Get("end_time"), 10, 64)
		start, end := time.Unix(s, 0).UTC(), time.Unix(e, 0).UTC()
		if fail != nil && fail(start, end) {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var buckets []string
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			buckets = append(buckets, fmt.Sprintf(`{"results":[{"amount":{"value":%g,"currency":"usd"}}]}`, dayCost(d)))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[%s],"has_more":false,"next_page":null}`, strings.Join(buckets, ","))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func expectedTotal(start, end string) float64 {
	var sum float64
	for _, day := range core.ListDatesInclusive(start, end) {
		d, _ := core.ParseDay(day)
		sum += dayCost(d)
	}
	return sum
}

func newFetcher(url string) *CostFetcher {
	return &CostFetcher{BaseURL: url, Client: shared.NewClient()}
}

func TestFetchRange_SumsAllBucketsAndResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("start_time"); got != "1760140800" {
			t.Errorf("start_time = %s, want 1760140800", got)
		}
		if got := r.URL.Query().Get("end_time"); got != "1760313600" {
			t.Errorf("end_time = %s, want 1760313600 (exclusive)", got)
		}
		w.Write([]byte(`{"data":[
			{"results":[{"amount":{"value":1.5}},{"amount":{"value":"2.5"}}]},
			{"results":[]},
			{"results":[{"amount":{"value":0.25}},{"amount":{}}]}
		],"has_more":false}`))
	}))
	defer server.Close()

	res, err := newFetcher(server.URL).FetchRange(context.Background(), "sk-admin", "", "2025-10-11", "2025-10-12")
	if err != nil {
		t.Fatalf("FetchRange error: %v", err)
	}
	if res.Total != 4.25 {
		t.Errorf("Total = %v, want 4.25", res.Total)
	}
	if res.Pages != 1 || res.Truncated {
		t.Errorf("Pages = %d Truncated = %v", res.Pages, res.Truncated)
	}
}

func TestFetchRange_HasMoreFalseStopsDespiteNextPage(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data":[{"results":[{"amount":{"value":1}}]}],"has_more":false,"next_page":"page_2"}`))
	}))
	defer server.Close()

	res, err := newFetcher(server.URL).FetchRange(context.Background(), "k", "", "2026-10-17", "2026-10-17")
	if err != nil {
		t.Fatalf("FetchRange error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if res.Total != 1 {
		t.Errorf("Total = %v, want 1", res.Total)
	}
}

func TestFetchRange_FollowsEveryNextPageForm(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.RequestURI())
		mu.Unlock()
		q := r.URL.Query()
		var next string
		switch {
		case q.Get("page") == "" && q.Get("p") == "" && r.URL.Path == "/v1/organization/costs":
			next = `"cursor_a"`
		case q.Get("page") == "cursor_a":
			next = `"/v1/organization/costs?p=path"`
		case q.Get("p") == "path":
			next = `"?p=query"`
		case q.Get("p") == "query":
			next = `"p=bare"`
		case q.Get("p") == "bare":
			next = fmt.Sprintf(`"%s/v1/organization/costs?p=absolute"`, server.URL)
		default:
			w.Write([]byte(`{"data":[{"results":[{"amount":{"value":1}}]}],"has_more":false}`))
			return
		}
		fmt.Fprintf(w, `{"data":[{"results":[{"amount":{"value":1}}]}],"has_more":true,"next_page":%s}`, next)
	}))
	defer server.Close()

	res, err := newFetcher(server.URL).FetchRange(context.Background(), "k", "", "2026-10-10", "2026-10-16")
	if err != nil {
		t.Fatalf("FetchRange error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if res.Pages != 6 || res.Total != 6 {
		t.Errorf("Pages = %d Total = %v, want 6/6 (seen %v)", res.Pages, res.Total, seen)
	}
	if !strings.Contains(seen[1], "start_time=") || !strings.Contains(seen[1], "page=cursor_a") {
		t.Errorf("cursor page should keep the window: %s", seen[1])
	}
}

func TestFetchRange_PageCap(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data":[{"results":[{"amount":{"value":0.5}}]}],"has_more":true,"next_page":"next"}`))
	}))
	defer server.Close()

	res, err := newFetcher(server.URL).FetchRange(context.Background(), "k", "", "2026-10-17", "2026-10-17")
	if err != nil {
		t.Fatalf("FetchRange error: %v", err)
	}
	if calls.Load() != maxPages {
		t.Errorf("calls = %d, want %d", calls.Load(), maxPages)
	}
	if !res.Truncated || res.Total != 10 {
		t.Errorf("Truncated = %v Total = %v, want true/10", res.Truncated, res.Total)
	}
}

func TestFetchRange_ThroughRelay(t *testing.T) {
	api, _ := costsServer(t, nil)
	var relayed atomic.Int32
	relaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relayed.Add(1)
		target := r.URL.Query().Get("url")
		req, _ := http.NewRequest(http.MethodGet, target, nil)
		req.Header = r.Header.Clone()
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}))
	defer relaySrv.Close()

	res, err := newFetcher(api.URL).FetchRange(context.Background(), "sk-admin", relaySrv.URL, "2026-10-15", "2026-10-17")
	if err != nil {
		t.Fatalf("FetchRange error: %v", err)
	}
	if relayed.Load() != 1 {
		t.Errorf("relay calls = %d, want 1", relayed.Load())
	}
	if want := expectedTotal("2026-10-15", "2026-10-17"); res.Total != want {
		t.Errorf("Total = %v, want %v", res.Total, want)
	}
}

func TestChunkedSumEqualsWholeRange(t *testing.T) {
	api, _ := costsServer(t, nil)
	f := newFetcher(api.URL)
	ctx := context.Background()
	start, end := "2026-09-17", "2026-10-17"

	whole, err := f.FetchRange(ctx, "sk-admin", "", start, end)
	if err != nil {
		t.Fatalf("whole range: %v", err)
	}

	var chunked float64
	for _, span := range core.ChunkDateRange(start, end, chunkDays) {
		part, err := f.FetchRange(ctx, "sk-admin", "", span.Start, span.End)
		if err != nil {
			t.Fatalf("chunk %v: %v", span, err)
		}
		chunked += part.Total
	}

	if whole.Total != chunked {
		t.Errorf("whole = %v, chunked = %v", whole.Total, chunked)
	}
	if whole.Total != expectedTotal(start, end) {
		t.Errorf("whole = %v, want %v", whole.Total, expectedTotal(start, end))
	}
}

func TestAggregate_FallsBackToChunks(t *testing.T) {
	api, _ := costsServer(t, func(start, end time.Time) bool {
		return end.Sub(start) > 7*24*time.Hour
	})
	start, end := "2026-09-17", "2026-10-17"

	res := newFetcher(api.URL).Aggregate(context.Background(), "sk-admin", "", start, end)
	if res.Total != expectedTotal(start, end) {
		t.Errorf("Total = %v, want %v", res.Total, expectedTotal(start, end))
	}
	if res.Partial() {
		t.Errorf("result should be complete: %+v", res)
	}
}

func TestAggregate_FallsBackToDaysAndSkipsFailures(t *testing.T) {
	badDay := time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC)
	api, _ := costsServer(t, func(start, end time.Time) bool {
		return end.Sub(start) > 24*time.Hour || start.Equal(badDay)
	})
	start, end := "2026-10-11", "2026-10-17"

	res := newFetcher(api.URL).Aggregate(context.Background(), "sk-admin", "", start, end)
	want := expectedTotal(start, end) - dayCost(badDay)
	if res.Total != want {
		t.Errorf("Total = %v, want %v", res.Total, want)
	}
	if len(res.SkippedDays) != 1 || res.SkippedDays[0] != "2026-10-13" {
		t.Errorf("SkippedDays = %v", res.SkippedDays)
	}
	if !res.Partial() || res.LastErr == nil {
		t.Errorf("expected partial result with LastErr: %+v", res)
	}
}

func TestFetchBalance_ReportsUsedOverRange(t *testing.T) {
	api, _ := costsServer(t, nil)
	p := NewWithClient(api.URL, shared.NewClient())
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.Local)

	bal, err := p.FetchBalance(context.Background(), core.FetchRequest{
		Account: core.Account{ID: "a", Vendor: core.VendorOpenAI, Credential: "sk-admin"},
		Range:   core.UsageRange3d,
		Now:     now,
	})
	if err != nil {
		t.Fatalf("FetchBalance error: %v", err)
	}
	if bal.Granted != nil || bal.Available != nil {
		t.Errorf("granted/available should be nil: %+v", bal)
	}
	if want := expectedTotal("2026-10-15", "2026-10-17"); bal.Used == nil || *bal.Used != want {
		t.Errorf("Used = %v, want %v", bal.Used, want)
	}
}

func TestFetchBalance_EveryRequestFailingReportsPartialZero(t *testing.T) {
	api, calls := costsServer(t, func(time.Time, time.Time) bool { return true })
	p := NewWithClient(api.URL, shared.NewClient())

	bal, err := p.FetchBalance(context.Background(), core.FetchRequest{
		Account: core.Account{ID: "a", Vendor: core.VendorOpenAI, Credential: "sk-admin"},
		Range:   core.UsageRange3d,
		Now:     time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("FetchBalance error: %v", err)
	}
	if bal.Used == nil || *bal.Used != 0 {
		t.Errorf("Used = %v, want 0", bal.Used)
	}
	if !bal.Partial {
		t.Error("Partial = false, want true when every day was skipped")
	}
	// whole range, one chunk, then three single days
	if got := calls.Load(); got != 5 {
		t.Errorf("calls = %d, want 5", got)
	}
}
