// Package media defines the feed's content types: the items the feed shows,
// the provider detail they are built from, and the trailer selection rule.
package media

import (
	"fmt"
	"strings"
)

// ContentType selects which catalogue a feed draws from.
type ContentType string

const (
	Movie ContentType = "movie"
	TV    ContentType = "tv"
	Anime ContentType = "anime"
)

// ContentTypes lists every supported content type in display order.
var ContentTypes = []ContentType{Movie, TV, Anime}

// ParseContentType validates s. The empty string maps to Movie.
func ParseContentType(s string) (ContentType, error) {
	switch ct := ContentType(strings.ToLower(strings.TrimSpace(s))); ct {
	case "":
		return Movie, nil
	case Movie, TV, Anime:
		return ct, nil
	default:
		return "", fmt.Errorf("unknown content type %q", s)
	}
}

// Label is the display name of the content type.
func (c ContentType) Label() string {
	switch c {
	case TV:
		return "TV"
	case Anime:
		return "Anime"
	default:
		return "Movies"
	}
}

// MaxGenres caps the genre labels carried by an Item.
const MaxGenres = 3

// Item is one feed entry.
type Item struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Overview     string   `json:"overview"`
	PosterPath   string   `json:"poster_path,omitempty"`
	BackdropPath string   `json:"backdrop_path,omitempty"`
	ReleaseDate  string   `json:"release_date,omitempty"`
	TrailerID    string   `json:"trailerId,omitempty"`
	Genres       []string `json:"genresDisplay,omitempty"`
	VoteAverage  float64  `json:"vote_average,omitempty"`
	ReleaseYear  string   `json:"releaseYear,omitempty"`
	PosterURL    string   `json:"posterUrl,omitempty"`
	BackdropURL  string   `json:"backdropUrl,omitempty"`
}

// HasTrailer reports whether a player (rather than the static fallback) should render.
func (i Item) HasTrailer() bool {
	return i.TrailerID != ""
}

// TrailerURL returns the watch URL of the trailer, or "" when there is none.
func (i Item) TrailerURL() string {
	if i.TrailerID == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + i.TrailerID
}

// Summary is a candidate entry from a provider list page. Media is the
// concrete catalogue the entry came from (movie or tv), which for anime
// depends on the discovery strategy that found it.
type Summary struct {
	ID    int         `json:"id"`
	Title string      `json:"title"`
	Media ContentType `json:"media,omitempty"`
}

// DetailType returns the catalogue to fetch the summary's detail from,
// falling back to ct.
func (s Summary) DetailType(ct ContentType) ContentType {
	if s.Media != "" {
		return s.Media
	}
	return ct
}

// Page is one page of candidates.
type Page struct {
	Items      []Summary
	Page       int
	TotalPages int
}

// Genre is a provider genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Video is a provider video reference.
type Video struct {
	Key      string `json:"key"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Official bool   `json:"official"`
}

// ItemDetail is the full provider record an Item is built from.
type ItemDetail struct {
	ID           int
	Title        string
	Overview     string
	PosterPath   string
	BackdropPath string
	ReleaseDate  string
	VoteAverage  float64
	Genres       []Genre
	Videos       []Video
}

// FeedPage is one assembled page of feed items, as served by the backend's
// JSON endpoint and carried by the stream's complete event.
type FeedPage struct {
	Movies     []Item `json:"movies"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	HasMore    bool   `json:"hasMore"`
}
