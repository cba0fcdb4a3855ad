package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/media"
)

// HTTPPageFetcher reads whole pages from the backend's JSON endpoint.
type HTTPPageFetcher struct {
	base   string
	client *http.Client
}

// NewHTTPPageFetcher returns a fetcher for the backend at base.
func NewHTTPPageFetcher(base string, timeout time.Duration) *HTTPPageFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPPageFetcher{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// FetchFeedPage implements PageFetcher.
func (f *HTTPPageFetcher) FetchFeedPage(ctx context.Context, ct media.ContentType, page int) (media.FeedPage, error) {
	endpoint := fmt.Sprintf("%s/api/feed/%s?page=%d", f.base, url.PathEscape(string(ct)), page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return media.FeedPage{}, apperr.New(apperr.KindBadRequest, "feed.page", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return media.FeedPage{}, apperr.New(networkKind(err), "feed.page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &body)
		return media.FeedPage{}, apperr.FromStatus("feed.page", resp.StatusCode, body.Error)
	}

	var out media.FeedPage
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return media.FeedPage{}, apperr.New(apperr.KindDecode, "feed.page", err)
	}
	if out.Page == 0 {
		out.Page = page
	}
	return out, nil
}

func networkKind(err error) apperr.Kind {
	if k := apperr.KindOf(err); k != apperr.KindUnknown {
		return k
	}
	return apperr.KindNetwork
}
