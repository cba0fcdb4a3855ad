package media

import "testing"

func TestParseContentType(t *testing.T) {
	tests := []struct {
		in      string
		want    ContentType
		wantErr bool
	}{
		{"", Movie, false},
		{"movie", Movie, false},
		{" TV ", TV, false},
		{"anime", Anime, false},
		{"podcast", "", true},
	}
	for _, tt := range tests {
		got, err := ParseContentType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseContentType(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseContentType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBestTrailerPriority(t *testing.T) {
	videos := []Video{
		{Key: "vimeo", Site: "Vimeo", Type: "Trailer", Official: true},
		{Key: "teaser", Site: "YouTube", Type: "Teaser"},
		{Key: "fan", Site: "YouTube", Type: "Trailer"},
		{Key: "official", Site: "YouTube", Type: "Trailer", Official: true, Name: "Trailer 2"},
		{Key: "named", Site: "YouTube", Type: "Trailer", Official: true, Name: "Official Trailer"},
	}

	tests := []struct {
		name   string
		videos []Video
		want   string
	}{
		{"named official trailer wins", videos, "named"},
		{"official trailer", videos[:4], "official"},
		{"any youtube trailer", videos[:3], "fan"},
		{"any youtube video", videos[:2], "teaser"},
		{"no youtube", videos[:1], ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BestTrailer(tt.videos); got != tt.want {
				t.Errorf("BestTrailer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransform(t *testing.T) {
	d := ItemDetail{
		ID:          7,
		Title:       "Heat",
		ReleaseDate: "1995-12-15",
		PosterPath:  "/p.jpg",
		Genres:      []Genre{{1, "Action"}, {2, "Crime"}, {3, "Drama"}, {4, "Thriller"}},
		Videos:      []Video{{Key: "abc", Site: "YouTube", Type: "Trailer"}},
	}
	it := Transform(d)

	if it.ReleaseYear != "1995" {
		t.Errorf("ReleaseYear = %q", it.ReleaseYear)
	}
	if len(it.Genres) != MaxGenres || it.Genres[2] != "Drama" {
		t.Errorf("Genres = %v", it.Genres)
	}
	if !it.HasTrailer() || it.TrailerURL() != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("trailer = %q / %q", it.TrailerID, it.TrailerURL())
	}
	if it.PosterURL != ImageBaseURL+"/w500/p.jpg" {
		t.Errorf("PosterURL = %q", it.PosterURL)
	}
	if it.BackdropURL != "" {
		t.Errorf("BackdropURL = %q, want empty", it.BackdropURL)
	}
}
