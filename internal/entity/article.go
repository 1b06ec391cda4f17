package entity

import "time"

// Article mirrors the `articles` PostgreSQL table schema.
// ID is a 24-hex ObjectID assigned on insert; URL is unique.
type Article struct {
	ID          string     `json:"_id"`
	Header      string     `json:"header"`
	Subheader   string     `json:"subheader"`
	Thumbnail   string     `json:"thumbnail"`
	Content     string     `json:"content"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ArticlePage is one page of articles plus the total row count.
type ArticlePage struct {
	Articles []Article `json:"data"`
	Total    int64     `json:"total"`
}
