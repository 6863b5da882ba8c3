package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Book is one row of the books table. Nullable columns decode to their zero
// value; Rating stays a pointer so "unrated" and 0 remain distinguishable.
type Book struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ISBN      string    `gorm:"index;size:20" json:"isbn"`
	Title     string    `gorm:"size:512" json:"title"`
	CoverURL  string    `gorm:"size:2048" json:"cover_url"`
	Tags      []string  `gorm:"serializer:json" json:"tags"`
	Rating    *int      `json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns the store-side identifier when the local backend inserts a row.
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// HasTag reports whether the book carries the tag exactly as written.
func (b *Book) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// NewBook is the insert payload. The store assigns id and created_at.
type NewBook struct {
	ISBN     string   `json:"isbn"`
	Title    string   `json:"title"`
	CoverURL string   `json:"cover_url"`
	Tags     []string `json:"tags"`
	Rating   *int     `json:"rating,omitempty"`
	Comment  string   `json:"comment,omitempty"`
}

// BookUpdate carries only the fields being changed.
type BookUpdate struct {
	ISBN     *string   `json:"isbn,omitempty"`
	Title    *string   `json:"title,omitempty"`
	CoverURL *string   `json:"cover_url,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Rating   *int      `json:"rating,omitempty"`
	Comment  *string   `json:"comment,omitempty"`
}

// IsEmpty reports whether the update would change nothing.
func (u BookUpdate) IsEmpty() bool {
	return u.ISBN == nil && u.Title == nil && u.CoverURL == nil &&
		u.Tags == nil && u.Rating == nil && u.Comment == nil
}

// ApplyTo copies the set fields onto b.
func (u BookUpdate) ApplyTo(b *Book) {
	if u.ISBN != nil {
		b.ISBN = *u.ISBN
	}
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.CoverURL != nil {
		b.CoverURL = *u.CoverURL
	}
	if u.Tags != nil {
		b.Tags = *u.Tags
	}
	if u.Rating != nil {
		rating := *u.Rating
		b.Rating = &rating
	}
	if u.Comment != nil {
		b.Comment = *u.Comment
	}
}

// SplitTags turns comma-separated free text into a tag list: entries are
// trimmed and empty ones dropped. Never returns nil.
func SplitTags(text string) []string {
	tags := []string{}
	for _, part := range strings.Split(text, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
