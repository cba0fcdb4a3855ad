package assemble

import (
	"context"
	"fmt"

	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/stream"
)

// Emit writes one stream event. A non-nil error aborts the stream.
type Emit func(event string, payload any) error

// Stream assembles a page progressively: a start event, the priority wave
// in candidate order, background batches, then the canonical list. A
// candidate-page failure is returned before anything but start is emitted;
// the caller reports it as an error event.
func (a *Assembler) Stream(ctx context.Context, ct media.ContentType, page int, emit Emit) error {
	if err := emit(stream.EventStart, stream.StartPayload{
		Status: stream.ProgressFetching, Page: page, ContentType: string(ct),
	}); err != nil {
		return err
	}

	cands, total, err := a.candidates(ctx, ct, page)
	if err != nil {
		return err
	}

	var (
		all     = make([]media.Item, 0, len(cands))
		emitted int
	)
	send := func(items []*media.Item, wave stream.Wave, batch int) error {
		for _, it := range items {
			if it == nil {
				continue
			}
			if err := emit(stream.EventMovie, stream.MoviePayload{
				Movie: it, Index: emitted, Total: len(cands), Type: wave, Batch: batch,
			}); err != nil {
				return err
			}
			emitted++
			all = append(all, *it)
		}
		return nil
	}

	split := min(a.opts.PriorityCount, len(cands))
	if split > 0 {
		if err := send(a.details(ctx, ct, cands[:split]), stream.WavePriority, 0); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(stream.EventStatus, stream.StatusPayload{
			Status: stream.ProgressPriorityComplete, Count: emitted, Total: len(cands),
		}); err != nil {
			return err
		}
	}

	batch := 0
	for lo := split; lo < len(cands); lo += a.opts.BatchSize {
		batch++
		hi := min(lo+a.opts.BatchSize, len(cands))
		if err := send(a.details(ctx, ct, cands[lo:hi]), stream.WaveBackground, batch); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(stream.EventStatus, stream.StatusPayload{
			Status: stream.ProgressBatchComplete, Batch: batch, Count: emitted, Total: len(cands),
		}); err != nil {
			return err
		}
	}

	a.log.Debug("stream assembled", "type", ct, "page", page, "items", len(all), "candidates", len(cands))
	res := result(all, page, total)
	if err := emit(stream.EventComplete, res); err != nil {
		return fmt.Errorf("emit complete: %w", err)
	}
	return nil
}
