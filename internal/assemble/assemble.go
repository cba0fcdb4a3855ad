// Package assemble turns provider candidate pages into feed items, either
// as one whole page or as a progressive priority-then-batches stream.
package assemble

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/cineswipe/internal/feed"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/otel"
	"github.com/abelbrown/cineswipe/internal/provider"
)

const (
	DefaultPageSize      = 20
	DefaultPriorityCount = 6
	DefaultBatchSize     = 5
	DefaultConcurrency   = 6
	DefaultDetailTimeout = 10 * time.Second
)

// Options configures an Assembler. Zero values take the defaults.
type Options struct {
	PageSize      int
	PriorityCount int
	BatchSize     int
	Concurrency   int
	DetailTimeout time.Duration
	Logger        *log.Logger
	Events        *otel.Logger

	// OnDrop is called for every candidate whose detail could not be
	// fetched. It may run concurrently.
	OnDrop func(ct media.ContentType, id int, err error)
}

// Assembler builds feed pages from a Provider. Goroutine-safe.
type Assembler struct {
	p      provider.Provider
	opts   Options
	log    *log.Logger
	events *otel.Logger
}

var _ feed.PageFetcher = (*Assembler)(nil)

// New returns an Assembler over p.
func New(p provider.Provider, opts Options) *Assembler {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PriorityCount <= 0 {
		opts.PriorityCount = DefaultPriorityCount
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.DetailTimeout <= 0 {
		opts.DetailTimeout = DefaultDetailTimeout
	}
	return &Assembler{
		p:      p,
		opts:   opts,
		log:    logging.OrDiscard(opts.Logger).WithPrefix("assemble"),
		events: opts.Events,
	}
}

// Options returns the effective options.
func (a *Assembler) Options() Options { return a.opts }

// Page assembles one whole page. Items whose detail fails are dropped;
// survivors keep candidate order. An empty candidate page yields an empty
// result with HasMore false.
func (a *Assembler) Page(ctx context.Context, ct media.ContentType, page int) (media.FeedPage, error) {
	cands, total, err := a.candidates(ctx, ct, page)
	if err != nil {
		return media.FeedPage{}, err
	}
	items := compact(a.details(ctx, ct, cands))
	if err := ctx.Err(); err != nil {
		return media.FeedPage{}, err
	}
	return result(items, page, total), nil
}

// FetchFeedPage implements feed.PageFetcher.
func (a *Assembler) FetchFeedPage(ctx context.Context, ct media.ContentType, page int) (media.FeedPage, error) {
	return a.Page(ctx, ct, page)
}

func (a *Assembler) candidates(ctx context.Context, ct media.ContentType, page int) ([]media.Summary, int, error) {
	p, err := a.p.FetchPage(ctx, ct, page)
	if err != nil {
		a.log.Error("candidate page failed", "type", ct, "page", page, "err", err)
		return nil, 0, err
	}
	cands := p.Items
	if len(cands) > a.opts.PageSize {
		cands = cands[:a.opts.PageSize]
	}
	return cands, p.TotalPages, nil
}

// details fetches every candidate's detail with bounded parallelism. The
// result is index-aligned with cands; failed entries are nil.
func (a *Assembler) details(ctx context.Context, ct media.ContentType, cands []media.Summary) []*media.Item {
	out := make([]*media.Item, len(cands))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, c := range cands {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			dctx, cancel := context.WithTimeout(ctx, a.opts.DetailTimeout)
			defer cancel()

			d, err := a.p.FetchItemDetail(dctx, c.ID, c.DetailType(ct))
			if err != nil {
				a.drop(ct, c, err)
				return nil // one bad item never fails the page
			}
			it := media.Transform(d)
			out[i] = &it
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (a *Assembler) drop(ct media.ContentType, c media.Summary, err error) {
	a.log.Warn("item dropped", "type", ct, "id", c.ID, "err", err)
	a.events.Emit(otel.Event{
		Level: otel.LevelWarn, Kind: otel.KindItemDropped, Comp: "assemble",
		ContentType: string(ct), Index: c.ID, Err: err.Error(),
	})
	if a.opts.OnDrop != nil {
		a.opts.OnDrop(ct, c.ID, err)
	}
}

func compact(items []*media.Item) []media.Item {
	out := make([]media.Item, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}

func result(items []media.Item, page, total int) media.FeedPage {
	return media.FeedPage{
		Movies:     items,
		Page:       page,
		TotalPages: total,
		HasMore:    page < total && len(items) > 0,
	}
}
