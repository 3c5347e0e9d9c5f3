package model

import "time"

// Movie is a catalog item.  Shows reference it through MovieID and are
// removed together with it.
type Movie struct {
    ID              uint64     `json:"id"`
    Title           string     `json:"title"`
    Description     string     `json:"description,omitempty"`
    Genre           string     `json:"genre,omitempty"`
    Director        string     `json:"director,omitempty"`
    DurationMinutes uint32     `json:"duration_minutes"`
    ReleaseDate     *time.Time `json:"release_date,omitempty"`
    PosterURL       string     `json:"poster_url,omitempty"`
    CreatedAt       time.Time  `json:"created_at"`
}
