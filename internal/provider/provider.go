// Package provider fetches candidate pages and item details from the
// metadata service.
package provider

import (
	"context"

	"github.com/abelbrown/cineswipe/internal/media"
)

// Provider is the metadata collaborator the feed is assembled from.
type Provider interface {
	// FetchPage returns one page of candidates. For anime the provider may
	// try several query strategies; the first non-empty one wins.
	FetchPage(ctx context.Context, ct media.ContentType, page int) (media.Page, error)

	// FetchItemDetail returns full detail, including videos, for one item.
	FetchItemDetail(ctx context.Context, id int, ct media.ContentType) (media.ItemDetail, error)
}
