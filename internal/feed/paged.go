package feed

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/stream"
)

// PageFetcher loads one whole page of feed items.
type PageFetcher interface {
	FetchFeedPage(ctx context.Context, ct media.ContentType, page int) (media.FeedPage, error)
}

// PagedSource is the degraded, non-streaming source: each page arrives in
// one piece. It keeps the single-flight rule of the streaming consumer.
type PagedSource struct {
	fetcher PageFetcher
	sink    stream.Sink
	log     *log.Logger

	mu     sync.Mutex
	ct     media.ContentType
	gen    uint64
	page   int
	cancel context.CancelFunc
}

// NewPagedSource returns a PagedSource delivering into sink.
func NewPagedSource(f PageFetcher, ct media.ContentType, sink stream.Sink, logger *log.Logger) *PagedSource {
	if ct == "" {
		ct = media.Movie
	}
	return &PagedSource{
		fetcher: f,
		sink:    sink,
		ct:      ct,
		log:     logging.OrDiscard(logger).WithPrefix("paged"),
	}
}

// Start fetches page, abandoning any fetch still running.
func (p *PagedSource) Start(page int) {
	if page < 1 {
		page = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.gen++
	gen := p.gen
	p.page = page
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	ct := p.ct

	p.sink.Begin(page)
	p.sink.Progress(page, stream.StatusConnecting, stream.LabelConnecting)

	go func() {
		res, err := p.fetcher.FetchFeedPage(ctx, ct, page)
		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.gen {
			return
		}
		p.cancel = nil
		cancel()
		if err != nil {
			if apperr.KindOf(err) == apperr.KindCanceled {
				return
			}
			p.log.Warn("page fetch failed", "page", page, "err", err)
			p.sink.Progress(page, stream.StatusError, stream.LabelError)
			p.sink.Fail(page, err)
			return
		}
		p.sink.Progress(page, stream.StatusComplete, stream.LabelComplete)
		p.sink.Complete(page, res.Movies, res.HasMore)
	}()
}

// Cancel abandons the running fetch, if any.
func (p *PagedSource) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.stopLocked()
	p.gen++
	p.sink.Progress(p.page, stream.StatusCanceled, stream.LabelCanceled)
	p.sink.Canceled(p.page)
}

// Retry fetches the last started page again.
func (p *PagedSource) Retry() {
	p.mu.Lock()
	page := max(p.page, 1)
	p.mu.Unlock()
	p.Start(page)
}

// SetContentType abandons any fetch and rebinds the source.
func (p *PagedSource) SetContentType(ct media.ContentType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.gen++
	p.ct = ct
}

func (p *PagedSource) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
