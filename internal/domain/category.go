package domain

import "time"

// Category is a grouping label. Name and slug are both unique; the slug is a
// pure function of the name so upserting the same name twice resolves to the
// same row.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
