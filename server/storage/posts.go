package storage

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Post statuses
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)

// Post represents an ORM object to store a published entry
type Post struct {
	ID         uint `gorm:"primarykey"`
	Identifier int64 `gorm:"index"` // timestamp-derived, used in permalinks
	CreatedAt  time.Time
	UpdatedAt  time.Time
	PostType    string
	Name        string
	Slug        string
	Content     string
	Tags        string // single delimited string, e.g. "a, b, c"
	Status      string
	URL         string // reply context target for replies, likes, reposts, bookmarks
	SyndicateTo string
	Deleted     bool
	Media       []Media `gorm:"many2many:post_media;"`
}

// TagList splits the stored tag string back into its values.
func (p *Post) TagList() []string {
	if p.Tags == "" {
		return nil
	}
	return strings.Split(p.Tags, ", ")
}

type Posts interface {
	SavePost(p *Post) error
	FindPost(identifier int64) (*Post, error)
	FindPostAny(identifier int64) (*Post, error)
	UpdatePostFields(identifier int64, fields map[string]any) error
	SoftDeletePost(identifier int64) error
	UndeletePost(identifier int64) error
	RemovePost(identifier int64) error
	CountPosts() (int64, error)
	AttachMedia(p *Post, m *Media) error
}

func (s *sqliteDatabase) SavePost(p *Post) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Identifier == 0 {
		p.Identifier = p.CreatedAt.Unix()
	}
	tx := s.db.Save(p)
	return tx.Error
}

// FindPost looks up a post by identifier, excluding soft-deleted posts.
func (s *sqliteDatabase) FindPost(identifier int64) (*Post, error) {
	var post Post
	tx := s.db.Where("identifier = ? AND deleted = ?", identifier, false).First(&post)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &post, nil
}

// FindPostAny looks up a post by identifier, including soft-deleted
// posts so they can be undeleted.
func (s *sqliteDatabase) FindPostAny(identifier int64) (*Post, error) {
	var post Post
	tx := s.db.Where("identifier = ?", identifier).First(&post)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &post, nil
}

func (s *sqliteDatabase) UpdatePostFields(identifier int64, fields map[string]any) error {
	tx := s.db.Model(&Post{}).Where("identifier = ?", identifier).Updates(fields)
	return tx.Error
}

func (s *sqliteDatabase) SoftDeletePost(identifier int64) error {
	return s.UpdatePostFields(identifier, map[string]any{"deleted": true})
}

func (s *sqliteDatabase) UndeletePost(identifier int64) error {
	return s.UpdatePostFields(identifier, map[string]any{"deleted": false})
}

// RemovePost hard-deletes a post row. Used to roll back a create whose
// media references did not resolve.
func (s *sqliteDatabase) RemovePost(identifier int64) error {
	tx := s.db.Where("identifier = ?", identifier).Delete(&Post{})
	return tx.Error
}

func (s *sqliteDatabase) CountPosts() (int64, error) {
	var count int64
	tx := s.db.Model(&Post{}).Count(&count)
	return count, tx.Error
}

func (s *sqliteDatabase) AttachMedia(p *Post, m *Media) error {
	return s.db.Model(p).Association("Media").Append(m)
}
