package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"

	rserrors "github.com/Sternrassler/repo-search/pkg/errors"
)

// fakeSource serves a fixed dataset and records the requested pages.
type fakeSource struct {
	names []string
	total int // reported total_count; defaults to len(names)

	// failOn maps a page number to the error returned for it
	failOn map[int]error
	// emptyOn lists pages answered with zero items
	emptyOn map[int]bool

	pages []int
}

func newFakeSource(n int) *fakeSource {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("owner/repo-%03d", i+1)
	}
	return &fakeSource{names: names, total: n}
}

func (s *fakeSource) FetchPage(_ context.Context, page, perPage int) (Page[string], error) {
	s.pages = append(s.pages, page)

	if err, ok := s.failOn[page]; ok {
		return Page[string]{}, err
	}
	if s.emptyOn[page] {
		return Page[string]{TotalCount: s.total, Items: nil}, nil
	}

	start := (page - 1) * perPage
	end := min(start+perPage, len(s.names))
	if start > end {
		start = end
	}
	items := append([]string(nil), s.names[start:end]...)
	return Page[string]{TotalCount: s.total, Items: items}, nil
}

func drain(t *testing.T, f *Fetcher[string]) int {
	t.Helper()
	calls := 0
	for {
		more, err := f.FetchNextPage(context.Background())
		if err != nil {
			t.Fatalf("FetchNextPage() error = %v", err)
		}
		calls++
		if !more {
			return calls
		}
		if calls > 1000 {
			t.Fatal("pagination did not terminate")
		}
	}
}

func TestFetcher_TwoPages(t *testing.T) {
	src := newFakeSource(45)
	f := NewFetcher[string](src, DefaultConfig())

	drain(t, f)

	if len(src.pages) != 2 {
		t.Fatalf("requests = %d, want 2", len(src.pages))
	}
	items := f.Items()
	if len(items) != 45 {
		t.Fatalf("len(Items()) = %d, want 45", len(items))
	}
	for i, name := range items {
		if name != src.names[i] {
			t.Fatalf("Items()[%d] = %q, want %q", i, name, src.names[i])
		}
	}
	if total, ok := f.Total(); !ok || total != 45 {
		t.Errorf("Total() = %d, %v, want 45, true", total, ok)
	}
}

func TestFetcher_PageNumbersStrictlyIncreasing(t *testing.T) {
	src := newFakeSource(200)
	f := NewFetcher[string](src, Config{PerPage: 30, MaxPages: 100})

	drain(t, f)

	for i, page := range src.pages {
		if page != i+1 {
			t.Fatalf("request %d used page %d, want %d (all: %v)", i, page, i+1, src.pages)
		}
	}
	if f.Page() != 7 {
		t.Errorf("Page() = %d, want 7", f.Page())
	}
}

func TestFetcher_Boundaries(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		wantRequests int
	}{
		{name: "zero results", total: 0, wantRequests: 1},
		{name: "exactly one page", total: 30, wantRequests: 1},
		{name: "one over a page", total: 31, wantRequests: 2},
		{name: "exactly two pages", total: 60, wantRequests: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(tt.total)
			f := NewFetcher[string](src, DefaultConfig())

			more, err := f.FetchNextPage(context.Background())
			if err != nil {
				t.Fatalf("first FetchNextPage() error = %v", err)
			}
			if !more {
				t.Fatal("first FetchNextPage() should report more pages may exist")
			}

			drain(t, f)

			if len(src.pages) != tt.wantRequests {
				t.Errorf("requests = %d, want %d", len(src.pages), tt.wantRequests)
			}
			if len(f.Items()) != tt.total {
				t.Errorf("len(Items()) = %d, want %d", len(f.Items()), tt.total)
			}
			if f.Truncated() {
				t.Error("Truncated() should be false")
			}
		})
	}
}

func TestFetcher_GuardIsIdempotent(t *testing.T) {
	src := newFakeSource(30)
	f := NewFetcher[string](src, DefaultConfig())
	drain(t, f)

	before := len(src.pages)
	for i := 0; i < 5; i++ {
		more, err := f.FetchNextPage(context.Background())
		if err != nil || more {
			t.Fatalf("FetchNextPage() = %v, %v, want false, nil", more, err)
		}
	}
	if len(src.pages) != before {
		t.Errorf("guard issued %d extra requests", len(src.pages)-before)
	}
	if !f.Done() {
		t.Error("Done() should be true")
	}
}

func TestFetcher_ErrorLeavesStateUnchanged(t *testing.T) {
	decodeErr := rserrors.New(rserrors.KindDecode, "missing items").WithPage(2)
	src := newFakeSource(45)
	src.failOn = map[int]error{2: decodeErr}
	f := NewFetcher[string](src, DefaultConfig())

	if _, err := f.FetchNextPage(context.Background()); err != nil {
		t.Fatalf("page 1 error = %v", err)
	}

	_, err := f.FetchNextPage(context.Background())
	if !rserrors.Is(err, rserrors.KindDecode) {
		t.Fatalf("page 2 error = %v, want DECODE", err)
	}
	if f.Page() != 1 {
		t.Errorf("Page() = %d after failure, want 1", f.Page())
	}
	if len(f.Items()) != 30 {
		t.Errorf("len(Items()) = %d after failure, want 30", len(f.Items()))
	}

	// Caller may retry; the same page is requested again.
	delete(src.failOn, 2)
	drain(t, f)
	if got := src.pages; len(got) != 3 || got[2] != 2 {
		t.Errorf("pages = %v, want [1 2 2]", got)
	}
	if len(f.Items()) != 45 {
		t.Errorf("len(Items()) = %d, want 45", len(f.Items()))
	}
}

func TestFetcher_FirstPageErrorKeepsItemsEmpty(t *testing.T) {
	src := newFakeSource(10)
	src.failOn = map[int]error{1: rserrors.New(rserrors.KindProtocol, "unexpected status").WithResponse(401, nil)}
	f := NewFetcher[string](src, DefaultConfig())

	if _, err := f.FetchAll(context.Background()); !rserrors.Is(err, rserrors.KindProtocol) {
		t.Fatalf("FetchAll() error = %v, want PROTOCOL", err)
	}
	if len(f.Items()) != 0 {
		t.Errorf("len(Items()) = %d, want 0", len(f.Items()))
	}
	if _, ok := f.Total(); ok {
		t.Error("Total() should be unknown after a failed first page")
	}
}

func TestFetcher_EmptyPageBeforeTotalFailsFast(t *testing.T) {
	src := newFakeSource(90)
	src.emptyOn = map[int]bool{2: true}
	f := NewFetcher[string](src, DefaultConfig())

	_, err := f.FetchAll(context.Background())
	if !errors.Is(err, ErrEmptyPage) {
		t.Fatalf("FetchAll() error = %v, want ErrEmptyPage", err)
	}
	if !rserrors.Is(err, rserrors.KindProtocol) {
		t.Errorf("error kind = %q, want PROTOCOL", rserrors.KindOf(err))
	}
	if len(src.pages) != 2 {
		t.Errorf("requests = %d, want 2", len(src.pages))
	}
	if len(f.Items()) != 30 {
		t.Errorf("len(Items()) = %d, want 30", len(f.Items()))
	}
}

func TestFetcher_MaxPagesStopsRunawayServer(t *testing.T) {
	// Server claims a huge total but keeps serving full pages.
	src := newFakeSource(1000)
	src.total = 1_000_000
	f := NewFetcher[string](src, Config{PerPage: 30, MaxPages: 5})

	items, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(src.pages) != 5 {
		t.Errorf("requests = %d, want 5", len(src.pages))
	}
	if len(items) != 150 {
		t.Errorf("len(items) = %d, want 150", len(items))
	}
	if !f.Truncated() {
		t.Error("Truncated() should be true")
	}
	if !f.Done() {
		t.Error("Done() should be true")
	}
}

func TestFetcher_DerivedLimitStopsGrowingTotal(t *testing.T) {
	// First page reports 45, later pages claim far more and stay full.
	src := PageFetcherFunc[string](func(_ context.Context, page, perPage int) (Page[string], error) {
		items := make([]string, perPage)
		for i := range items {
			items[i] = fmt.Sprintf("p%d-%d", page, i)
		}
		if page == 1 {
			return Page[string]{TotalCount: 45, Items: items}, nil
		}
		return Page[string]{TotalCount: 10_000, Items: items}, nil
	})
	var requested []int
	counting := PageFetcherFunc[string](func(ctx context.Context, page, perPage int) (Page[string], error) {
		requested = append(requested, page)
		return src(ctx, page, perPage)
	})
	f := NewFetcher[string](counting, DefaultConfig())

	items, err := f.FetchAll(context.Background())
	if err == nil {
		t.Fatal("FetchAll() should fail when the total keeps growing")
	}
	if items != nil {
		t.Errorf("items = %d, want nil on error", len(items))
	}
	if !errors.Is(err, ErrPageLimit) {
		t.Errorf("error = %v, want ErrPageLimit", err)
	}
	if !rserrors.Is(err, rserrors.KindProtocol) {
		t.Errorf("error kind = %q, want PROTOCOL", rserrors.KindOf(err))
	}
	// ceil(45/30) pages plus one page of slack.
	if len(requested) != 3 {
		t.Errorf("requests = %v, want 3 pages", requested)
	}
	if f.Truncated() {
		t.Error("Truncated() should be false; the run failed instead")
	}
}

func TestFetcher_DerivedLimitAllowsSmallPages(t *testing.T) {
	// 1000 results at 5 per page need 200 pages.
	src := newFakeSource(1000)
	f := NewFetcher[string](src, Config{PerPage: 5})

	items, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(items) != 1000 {
		t.Errorf("len(items) = %d, want 1000", len(items))
	}
	if len(src.pages) != 200 {
		t.Errorf("requests = %d, want 200", len(src.pages))
	}
	if f.Truncated() {
		t.Error("Truncated() should be false")
	}
}

func TestFetcher_ItemsAreCopies(t *testing.T) {
	src := newFakeSource(45)
	f := NewFetcher[string](src, DefaultConfig())

	all, err := f.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	all[0] = "mutated/by-caller"
	_ = append(all[:1], "appended/by-caller")

	snapshot := f.Items()
	snapshot[2] = "mutated/snapshot"

	got := f.Items()
	if got[0] != "owner/repo-001" || got[1] != "owner/repo-002" || got[2] != "owner/repo-003" {
		t.Errorf("fetcher state changed through returned slices: %v", got[:3])
	}
	if len(got) != 45 {
		t.Errorf("len(Items()) = %d, want 45", len(got))
	}
}

func TestFetcher_NegativeTotalIsDecodeError(t *testing.T) {
	src := newFakeSource(5)
	src.total = -1
	f := NewFetcher[string](src, DefaultConfig())

	_, err := f.FetchNextPage(context.Background())
	if !rserrors.Is(err, rserrors.KindDecode) {
		t.Fatalf("FetchNextPage() error = %v, want DECODE", err)
	}
	if len(f.Items()) != 0 {
		t.Error("items should not be updated")
	}
}

func TestFetcher_TotalMayChangeBetweenPages(t *testing.T) {
	calls := 0
	src := PageFetcherFunc[string](func(_ context.Context, page, perPage int) (Page[string], error) {
		calls++
		items := make([]string, perPage)
		for i := range items {
			items[i] = fmt.Sprintf("p%d-%d", page, i)
		}
		// Total shrinks after the first page.
		if page == 1 {
			return Page[string]{TotalCount: 100, Items: items}, nil
		}
		return Page[string]{TotalCount: 40, Items: items[:10]}, nil
	})
	f := NewFetcher[string](src, DefaultConfig())

	if _, err := f.FetchAll(context.Background()); err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if total, _ := f.Total(); total != 40 {
		t.Errorf("Total() = %d, want 40", total)
	}
}

func TestFetcher_AllStopsEarly(t *testing.T) {
	src := newFakeSource(300)
	f := NewFetcher[string](src, DefaultConfig())

	var got []string
	for name, err := range f.All(context.Background()) {
		if err != nil {
			t.Fatalf("All() error = %v", err)
		}
		got = append(got, name)
		if len(got) == 45 {
			break
		}
	}

	if len(src.pages) != 2 {
		t.Errorf("requests = %d, want 2", len(src.pages))
	}
	if got[44] != "owner/repo-045" {
		t.Errorf("got[44] = %q, want owner/repo-045", got[44])
	}
}

func TestFetcher_AllYieldsEverything(t *testing.T) {
	src := newFakeSource(45)
	f := NewFetcher[string](src, DefaultConfig())

	count := 0
	for _, err := range f.All(context.Background()) {
		if err != nil {
			t.Fatalf("All() error = %v", err)
		}
		count++
	}
	if count != 45 {
		t.Errorf("count = %d, want 45", count)
	}
}

func TestFetcher_AllZeroResults(t *testing.T) {
	src := newFakeSource(0)
	f := NewFetcher[string](src, DefaultConfig())

	for range f.All(context.Background()) {
		t.Fatal("All() should yield nothing")
	}
	if len(src.pages) != 1 {
		t.Errorf("requests = %d, want 1", len(src.pages))
	}
}

func TestFetcher_AllYieldsError(t *testing.T) {
	src := newFakeSource(45)
	src.failOn = map[int]error{2: rserrors.New(rserrors.KindTransport, "connection reset").WithPage(2)}
	f := NewFetcher[string](src, DefaultConfig())

	var items int
	var gotErr error
	for _, err := range f.All(context.Background()) {
		if err != nil {
			gotErr = err
			continue
		}
		items++
	}

	if items != 30 {
		t.Errorf("items = %d, want 30", items)
	}
	if !rserrors.Is(gotErr, rserrors.KindTransport) {
		t.Errorf("error = %v, want TRANSPORT", gotErr)
	}
}

func TestNewFetcher_Defaults(t *testing.T) {
	f := NewFetcher[string](newFakeSource(1), Config{})
	if f.config.PerPage != 30 {
		t.Errorf("PerPage = %d, want 30", f.config.PerPage)
	}
	if f.config.MaxPages != 0 {
		t.Errorf("MaxPages = %d, want 0 (derived)", f.config.MaxPages)
	}
	if f.Items() == nil {
		t.Error("Items() should be empty, not nil")
	}
}

func TestNewFetcher_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewFetcher should panic with nil source")
		}
	}()
	NewFetcher[string](nil, DefaultConfig())
}
