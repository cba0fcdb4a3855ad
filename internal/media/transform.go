package media

import "strings"

// ImageBaseURL is the provider's image CDN root.
const ImageBaseURL = "https://image.tmdb.org/t/p"

// ImageURL builds a full image URL for a relative path, or "" for an empty path.
func ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "original"
	}
	return ImageBaseURL + "/" + size + path
}

// BestTrailer picks the video key to play, most preferred first:
// an official YouTube trailer named "official trailer", any official YouTube
// trailer, any YouTube trailer, any YouTube video.
func BestTrailer(videos []Video) string {
	rules := []func(Video) bool{
		func(v Video) bool {
			return isYouTubeTrailer(v) && v.Official && strings.Contains(strings.ToLower(v.Name), "official trailer")
		},
		func(v Video) bool { return isYouTubeTrailer(v) && v.Official },
		isYouTubeTrailer,
		func(v Video) bool { return v.Site == "YouTube" },
	}
	for _, rule := range rules {
		for _, v := range videos {
			if v.Key != "" && rule(v) {
				return v.Key
			}
		}
	}
	return ""
}

func isYouTubeTrailer(v Video) bool {
	return v.Site == "YouTube" && v.Type == "Trailer"
}

// Transform turns a provider detail record into a feed Item.
func Transform(d ItemDetail) Item {
	genres := make([]string, 0, MaxGenres)
	for _, g := range d.Genres {
		if len(genres) == MaxGenres {
			break
		}
		genres = append(genres, g.Name)
	}

	year := ""
	if d.ReleaseDate != "" {
		year, _, _ = strings.Cut(d.ReleaseDate, "-")
	}

	return Item{
		ID:           d.ID,
		Title:        d.Title,
		Overview:     d.Overview,
		PosterPath:   d.PosterPath,
		BackdropPath: d.BackdropPath,
		ReleaseDate:  d.ReleaseDate,
		TrailerID:    BestTrailer(d.Videos),
		Genres:       genres,
		VoteAverage:  d.VoteAverage,
		ReleaseYear:  year,
		PosterURL:    ImageURL(d.PosterPath, "w500"),
		BackdropURL:  ImageURL(d.BackdropPath, "w1280"),
	}
}
