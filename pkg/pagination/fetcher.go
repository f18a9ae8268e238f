package pagination

import (
	"context"
	"errors"
	"iter"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	rserrors "github.com/Sternrassler/repo-search/pkg/errors"
	"github.com/Sternrassler/repo-search/pkg/logging"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reposearch_pages_fetched_total",
		Help: "Total number of result pages fetched",
	})

	itemsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reposearch_items_fetched_total",
		Help: "Total number of result items accumulated",
	})
)

// ErrEmptyPage is returned (as a PROTOCOL error) when the server sends a page
// without items although its total says items exist at that offset.
var ErrEmptyPage = errors.New("empty page before reported total")

// ErrPageLimit is returned (as a PROTOCOL error) when the server keeps
// reporting results past the page count implied by its first total.
var ErrPageLimit = errors.New("server total kept growing past the first reported total")

// pageSlack is the number of pages fetched beyond ceil(firstTotal/perPage)
// before a growing total is treated as a runaway server.
const pageSlack = 1

// Config holds fetcher configuration
type Config struct {
	// PerPage is the fixed page size sent with every request
	PerPage int
	// MaxPages, when positive, stops the run after that many pages and
	// marks it truncated. Zero derives the limit from the first page's total
	// and fails with ErrPageLimit if the server keeps reporting more.
	MaxPages int
}

// DefaultConfig returns the default configuration: 30 items per page and a
// page limit derived from the first reported total.
func DefaultConfig() Config {
	return Config{
		PerPage: 30,
	}
}

// Page is one decoded page of results.
type Page[T any] struct {
	// TotalCount is the total number of matches across all pages
	TotalCount int
	// Items holds this page's results in server order
	Items []T
}

// PageFetcher fetches a single page. Page numbers are 1-based.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, page, perPage int) (Page[T], error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, page, perPage int) (Page[T], error)

// FetchPage calls f.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, page, perPage int) (Page[T], error) {
	return f(ctx, page, perPage)
}

// Fetcher holds the state of one paginated search run.
// It is not safe for concurrent use.
type Fetcher[T any] struct {
	source PageFetcher[T]
	config Config
	logger zerolog.Logger

	page       int
	total      int
	firstTotal int
	limit      int // derived page limit, set by the first page when MaxPages is 0
	items      []T
	truncated  bool
}

// NewFetcher creates a fetcher positioned before the first page.
func NewFetcher[T any](source PageFetcher[T], config Config) *Fetcher[T] {
	if source == nil {
		panic("page fetcher cannot be nil")
	}
	if config.PerPage <= 0 {
		config.PerPage = 30
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Fetcher[T]{
		source: source,
		config: config,
		logger: logging.NewLogger(logging.ComponentPagination),
		items:  []T{},
	}
}

// FetchNextPage requests the next page and appends its items.
// It returns false once pagination is complete; in that case no request is
// made. On error the fetcher state is left unchanged.
func (f *Fetcher[T]) FetchNextPage(ctx context.Context) (bool, error) {
	if f.complete() {
		return false, nil
	}
	if f.config.MaxPages == 0 && f.page > 0 && f.page >= f.limit {
		f.logger.Error().
			Int("pages", f.page).
			Int("first_total", f.firstTotal).
			Int("total", f.total).
			Msg("Server total kept growing, stopping")
		return false, rserrors.Wrap(rserrors.KindProtocol, ErrPageLimit,
			"total_count %d after %d pages, first page reported %d", f.total, f.page, f.firstTotal).WithPage(f.page + 1)
	}
	if f.config.MaxPages > 0 && f.page >= f.config.MaxPages {
		if !f.truncated {
			f.truncated = true
			f.logger.Warn().
				Int("max_pages", f.config.MaxPages).
				Int("total", f.total).
				Int("fetched", len(f.items)).
				Msg("Page limit reached before reported total")
		}
		return false, nil
	}

	next := f.page + 1
	start := time.Now()

	result, err := f.source.FetchPage(ctx, next, f.config.PerPage)
	if err != nil {
		f.logger.Debug().Err(err).Int("page", next).Msg("Page fetch failed")
		return false, err
	}

	if result.TotalCount < 0 {
		return false, rserrors.New(rserrors.KindDecode, "negative total_count %d", result.TotalCount).WithPage(next)
	}
	if len(result.Items) == 0 && f.page*f.config.PerPage < result.TotalCount {
		return false, rserrors.Wrap(rserrors.KindProtocol, ErrEmptyPage,
			"total_count %d but no items at offset %d", result.TotalCount, f.page*f.config.PerPage).WithPage(next)
	}

	if next == 1 {
		f.firstTotal = result.TotalCount
		f.limit = ceilDiv(result.TotalCount, f.config.PerPage) + pageSlack
	}
	f.items = append(f.items, result.Items...)
	f.total = result.TotalCount
	f.page = next

	pagesFetchedTotal.Inc()
	itemsFetchedTotal.Add(float64(len(result.Items)))

	f.logger.Debug().
		Int("page", next).
		Int("items", len(result.Items)).
		Int("total", f.total).
		Int("accumulated", len(f.items)).
		Dur("duration", time.Since(start)).
		Msg("Page fetched")

	return true, nil
}

// FetchAll fetches every remaining page and returns a copy of the accumulated
// items. On error nothing is returned; Items still reflects the pages that
// succeeded.
func (f *Fetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()

	for {
		more, err := f.FetchNextPage(ctx)
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
	}

	f.logger.Info().
		Int("pages", f.page).
		Int("items", len(f.items)).
		Int("total", f.total).
		Bool("truncated", f.truncated).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return slices.Clone(f.items), nil
}

// All yields accumulated items in order, fetching further pages only when
// the caller asks for more. Breaking out of the loop stops pagination.
// A fetch error is yielded once with the zero value and ends the sequence.
func (f *Fetcher[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for i := 0; ; i++ {
			for i >= len(f.items) {
				more, err := f.FetchNextPage(ctx)
				if err != nil {
					var zero T
					yield(zero, err)
					return
				}
				if !more {
					return
				}
			}
			if !yield(f.items[i], nil) {
				return
			}
		}
	}
}

// Items returns a copy of the items accumulated so far.
func (f *Fetcher[T]) Items() []T {
	return slices.Clone(f.items)
}

// Page returns the number of the last successfully fetched page (0 before the first).
func (f *Fetcher[T]) Page() int {
	return f.page
}

// Total returns the server-reported total; ok is false until a page has been fetched.
func (f *Fetcher[T]) Total() (total int, ok bool) {
	return f.total, f.page > 0
}

// Done reports whether further calls to FetchNextPage would return false
// without error.
func (f *Fetcher[T]) Done() bool {
	return f.complete() || (f.config.MaxPages > 0 && f.page >= f.config.MaxPages)
}

// Truncated reports whether pagination stopped at an explicit MaxPages
// before the reported total.
func (f *Fetcher[T]) Truncated() bool {
	return f.truncated
}

// complete evaluates the guard page*perPage >= total.
// Before the first page the total is unknown and the guard never holds.
func (f *Fetcher[T]) complete() bool {
	return f.page > 0 && f.page*f.config.PerPage >= f.total
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
