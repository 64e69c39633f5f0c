package storage

import (
	"time"

	"gorm.io/gorm"
)

// Media represents an ORM object to store an uploaded file record
type Media struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	File      string `gorm:"index"` // file name relative to the media directory
	Alt       string
}

type MediaStore interface {
	SaveMedia(m *Media) error
	FindMediaByFile(name string) (*Media, error)
}

func (s *sqliteDatabase) SaveMedia(m *Media) error {
	tx := s.db.Save(m)
	return tx.Error
}

// FindMediaByFile matches a stored media record whose file name ends
// with the given name.
func (s *sqliteDatabase) FindMediaByFile(name string) (*Media, error) {
	var media Media
	tx := s.db.Where("file LIKE ?", "%"+name).First(&media)
	if tx.Error == gorm.ErrRecordNotFound {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}
	return &media, nil
}
