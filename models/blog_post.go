package models

import "time"

type BlogPost struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	AuthorID      uint       `json:"author_id" gorm:"index;not null"`
	Author        *Profile   `json:"author,omitempty" gorm:"foreignKey:AuthorID"`
	Title         string     `json:"title" gorm:"size:200;not null"`
	Slug          string     `json:"slug" gorm:"size:220;uniqueIndex;not null"`
	Excerpt       string     `json:"excerpt"`
	Content       string     `json:"content" gorm:"type:text;not null"`
	CoverImageURL string     `json:"cover_image_url,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty" gorm:"index"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
