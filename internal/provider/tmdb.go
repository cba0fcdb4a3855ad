package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/abelbrown/cineswipe/internal/apperr"
	"github.com/abelbrown/cineswipe/internal/cache"
	"github.com/abelbrown/cineswipe/internal/logging"
	"github.com/abelbrown/cineswipe/internal/media"
	"github.com/abelbrown/cineswipe/internal/otel"
)

// Defaults.
const (
	DefaultBaseURL    = "https://api.themoviedb.org/3"
	DefaultLanguage   = "en-US"
	DefaultRate       = 4 // requests per second, one every 250ms
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryBase  = time.Second
	GenreTTL          = 24 * time.Hour
)

// Config configures a TMDB client.
type Config struct {
	BaseURL    string
	Token      string // v4 read access token, sent as a bearer token
	Language   string
	Rate       float64 // requests per second; <= 0 uses DefaultRate
	Timeout    time.Duration
	MaxRetries int
	RetryBase  time.Duration
	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *log.Logger
	Events     *otel.Logger
}

// TMDB is a rate-limited, retrying, circuit-broken client for the TMDB v3
// API. Goroutine-safe.
type TMDB struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
	genres  *cache.TTL[media.ContentType, []media.Genre]
	anime   []Strategy
	log     *log.Logger
	events  *otel.Logger
}

var _ Provider = (*TMDB)(nil)

// NewTMDB returns a client. The genre cache uses cfg.Clock.
func NewTMDB(cfg Config) *TMDB {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	lg := logging.OrDiscard(cfg.Logger).WithPrefix("tmdb")

	t := &TMDB{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), 1),
		genres:  cache.NewTTL[media.ContentType, []media.Genre](GenreTTL, cfg.Clock),
		anime:   AnimeStrategies,
		log:     lg,
		events:  cfg.Events,
	}
	t.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// Client errors say nothing about the service's health.
		IsSuccessful: func(err error) bool {
			return err == nil || !apperr.Retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("circuit breaker", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return t
}

// BreakerState reports the circuit breaker state ("closed", "half-open",
// "open").
func (t *TMDB) BreakerState() string {
	return t.cb.State().String()
}

// FetchPage implements Provider.
func (t *TMDB) FetchPage(ctx context.Context, ct media.ContentType, page int) (media.Page, error) {
	switch ct {
	case media.Movie, media.TV:
		return t.fetchList(ctx, "/trending/"+string(ct)+"/day", nil, ct, page)
	case media.Anime:
		return t.fetchAnime(ctx, page)
	}
	return media.Page{}, apperr.Newf(apperr.KindBadRequest, "tmdb.page", "unsupported content type %q", ct)
}

// fetchAnime tries each strategy in order and returns the first non-empty
// page. Only when every strategy fails is an error returned.
func (t *TMDB) fetchAnime(ctx context.Context, page int) (media.Page, error) {
	var errs []error
	for _, s := range t.anime {
		p, err := t.fetchList(ctx, s.Path, s.Params, s.Media, page)
		if err != nil {
			if ctx.Err() != nil {
				return media.Page{}, apperr.New(apperr.KindOf(ctx.Err()), "tmdb.anime", ctx.Err())
			}
			t.log.Warn("anime strategy failed", "strategy", s.Name, "err", err)
			errs = append(errs, err)
			continue
		}
		if len(p.Items) > 0 {
			t.log.Debug("anime strategy", "strategy", s.Name, "page", page, "items", len(p.Items))
			return p, nil
		}
	}
	if len(errs) == len(t.anime) && len(errs) > 0 {
		return media.Page{}, errors.Join(errs...)
	}
	return media.Page{Page: page}, nil
}

type listResponse struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
	Results    []struct {
		ID        int    `json:"id"`
		Title     string `json:"title"`
		Name      string `json:"name"`
		MediaType string `json:"media_type"`
	} `json:"results"`
}

func (t *TMDB) fetchList(ctx context.Context, path string, params url.Values, mediaType media.ContentType, page int) (media.Page, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(page))

	var resp listResponse
	if err := t.get(ctx, "tmdb.page", path, q, &resp); err != nil {
		return media.Page{}, err
	}
	out := media.Page{Page: page, TotalPages: resp.TotalPages, Items: make([]media.Summary, 0, len(resp.Results))}
	for _, r := range resp.Results {
		title := r.Title
		if title == "" {
			title = r.Name
		}
		out.Items = append(out.Items, media.Summary{ID: r.ID, Title: title, Media: mediaType})
	}
	return out, nil
}

type detailResponse struct {
	ID           int           `json:"id"`
	Title        string        `json:"title"`
	Name         string        `json:"name"`
	Overview     string        `json:"overview"`
	PosterPath   string        `json:"poster_path"`
	BackdropPath string        `json:"backdrop_path"`
	ReleaseDate  string        `json:"release_date"`
	FirstAirDate string        `json:"first_air_date"`
	VoteAverage  float64       `json:"vote_average"`
	Genres       []media.Genre `json:"genres"`
	GenreIDs     []int         `json:"genre_ids"`
	Videos       struct {
		Results []media.Video `json:"results"`
	} `json:"videos"`
}

// FetchItemDetail implements Provider. Anime detail lives in the tv
// catalogue unless the candidate said otherwise.
func (t *TMDB) FetchItemDetail(ctx context.Context, id int, ct media.ContentType) (media.ItemDetail, error) {
	path := fmt.Sprintf("/%s/%d", catalogue(ct), id)
	q := url.Values{"append_to_response": {"videos"}}

	var r detailResponse
	if err := t.get(ctx, "tmdb.detail", path, q, &r); err != nil {
		return media.ItemDetail{}, err
	}
	d := media.ItemDetail{
		ID:           r.ID,
		Title:        r.Title,
		Overview:     r.Overview,
		PosterPath:   r.PosterPath,
		BackdropPath: r.BackdropPath,
		ReleaseDate:  r.ReleaseDate,
		VoteAverage:  r.VoteAverage,
		Genres:       r.Genres,
		Videos:       r.Videos.Results,
	}
	if d.Title == "" {
		d.Title = r.Name
	}
	if d.ReleaseDate == "" {
		d.ReleaseDate = r.FirstAirDate
	}
	if len(d.Genres) == 0 && len(r.GenreIDs) > 0 {
		d.Genres = t.resolveGenres(ctx, ct, r.GenreIDs)
	}
	return d, nil
}

// resolveGenres maps bare genre ids onto names from the cached genre list.
// A failed lookup degrades to no genres rather than failing the detail.
func (t *TMDB) resolveGenres(ctx context.Context, ct media.ContentType, ids []int) []media.Genre {
	all, err := t.Genres(ctx, ct)
	if err != nil {
		t.log.Warn("genre lookup failed", "type", ct, "err", err)
		return nil
	}
	names := make(map[int]string, len(all))
	for _, g := range all {
		names[g.ID] = g.Name
	}
	out := make([]media.Genre, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			out = append(out, media.Genre{ID: id, Name: name})
		}
	}
	return out
}

// Genres returns the genre list for ct, cached for GenreTTL.
func (t *TMDB) Genres(ctx context.Context, ct media.ContentType) ([]media.Genre, error) {
	key := catalogue(ct)
	if g, ok := t.genres.Get(key); ok {
		return g, nil
	}
	var resp struct {
		Genres []media.Genre `json:"genres"`
	}
	if err := t.get(ctx, "tmdb.genres", "/genre/"+string(key)+"/list", nil, &resp); err != nil {
		return nil, err
	}
	t.genres.Set(key, resp.Genres)
	return resp.Genres, nil
}

func catalogue(ct media.ContentType) media.ContentType {
	if ct == media.Movie {
		return media.Movie
	}
	return media.TV
}

// get performs a GET with rate limiting, circuit breaking and exponential
// retry of retryable failures, then decodes the body into out.
func (t *TMDB) get(ctx context.Context, op, path string, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("language", t.cfg.Language)
	endpoint := t.cfg.BaseURL + path + "?" + q.Encode()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.cfg.RetryBase
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	wait := &retryAfter{BackOff: backoff.WithMaxRetries(eb, uint64(t.cfg.MaxRetries))}
	policy := backoff.WithContext(wait, ctx)

	var body []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(apperr.New(apperr.KindOf(err), op, err))
		}
		b, err := t.cb.Execute(func() ([]byte, error) {
			return t.do(ctx, op, endpoint)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(apperr.New(apperr.KindUnavailable, op, err))
			}
			if ctx.Err() != nil || !apperr.Retryable(err) {
				return backoff.Permanent(err)
			}
			var ae *apperr.Error
			if errors.As(err, &ae) {
				wait.hint = ae.RetryAfter
			}
			t.log.Debug("retrying", "op", op, "attempt", attempt, "err", err)
			return err
		}
		body = b
		return nil
	}, policy)
	if err != nil {
		t.events.Emit(otel.Event{
			Level: otel.LevelWarn, Kind: otel.KindProviderError, Comp: "tmdb",
			Msg: op + " " + path, Err: err.Error(), Count: attempt,
		})
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperr.New(apperr.KindDecode, op, err)
	}
	return nil
}

// retryAfter stretches the next interval to the server's Retry-After hint.
type retryAfter struct {
	backoff.BackOff
	hint time.Duration
}

func (r *retryAfter) NextBackOff() time.Duration {
	d := r.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	d = max(d, r.hint)
	r.hint = 0
	return d
}

func (t *TMDB) do(ctx context.Context, op, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.New(apperr.KindBadRequest, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if t.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		kind := apperr.KindOf(err)
		if kind == apperr.KindUnknown {
			kind = apperr.KindNetwork
		}
		return nil, apperr.New(kind, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperr.New(apperr.KindNetwork, op, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	var te struct {
		StatusMessage string `json:"status_message"`
	}
	_ = json.Unmarshal(body, &te)
	e := apperr.FromStatus(op, resp.StatusCode, te.StatusMessage)
	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return nil, e
}
