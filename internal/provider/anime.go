package provider

import (
	"net/url"

	"github.com/abelbrown/cineswipe/internal/media"
)

// Strategy is one way of finding anime candidates.
type Strategy struct {
	Name   string
	Path   string
	Params url.Values
	Media  media.ContentType // catalogue the results belong to
}

const (
	genreAnimation = "16"
	keywordAnime   = "210024"
)

// AnimeStrategies are tried in order; the first non-empty page wins.
var AnimeStrategies = []Strategy{
	{
		Name: "jp-animation-tv",
		Path: "/discover/tv",
		Params: url.Values{
			"with_genres":         {genreAnimation},
			"with_origin_country": {"JP"},
			"sort_by":             {"popularity.desc"},
		},
		Media: media.TV,
	},
	{
		Name: "jp-animation-movie",
		Path: "/discover/movie",
		Params: url.Values{
			"with_genres":            {genreAnimation},
			"with_original_language": {"ja"},
			"sort_by":                {"popularity.desc"},
		},
		Media: media.Movie,
	},
	{
		Name: "anime-keyword",
		Path: "/discover/tv",
		Params: url.Values{
			"with_keywords": {keywordAnime},
			"sort_by":       {"popularity.desc"},
		},
		Media: media.TV,
	},
}
