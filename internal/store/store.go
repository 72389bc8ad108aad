// Package store persists confession records with gorm.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/veilhq/veil/internal/models"
)

// ErrNotFound reports that no record matched the correlation key.
var ErrNotFound = errors.New("confession not found")

// Confessions is the gorm-backed confession repository.
type Confessions struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Confessions {
	return &Confessions{db: db}
}

func (s *Confessions) Create(ctx context.Context, c *models.Confession) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("insert confession: %w", err)
	}
	return nil
}

func (s *Confessions) Save(ctx context.Context, c *models.Confession) error {
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("update confession %d: %w", c.ID, err)
	}
	return nil
}

func (s *Confessions) Delete(ctx context.Context, c *models.Confession) error {
	if err := s.db.WithContext(ctx).Delete(c).Error; err != nil {
		return fmt.Errorf("delete confession %d: %w", c.ID, err)
	}
	return nil
}

// ByStagingTS fetches the record whose staging message has the given
// timestamp.
func (s *Confessions) ByStagingTS(ctx context.Context, ts string) (*models.Confession, error) {
	var c models.Confession
	err := s.db.WithContext(ctx).Where("staging_ts = ?", ts).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch confession by staging_ts: %w", err)
	}
	return &c, nil
}

// ByPublishedTS fetches the record whose published message timestamp is
// any of the given values (a thread reply's parent counts).
func (s *Confessions) ByPublishedTS(ctx context.Context, ts ...string) (*models.Confession, error) {
	var c models.Confession
	err := s.db.WithContext(ctx).Where("published_ts IN ?", ts).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch confession by published_ts: %w", err)
	}
	return &c, nil
}

// Unviewed lists every record still waiting for review.
func (s *Confessions) Unviewed(ctx context.Context) ([]models.Confession, error) {
	var out []models.Confession
	if err := s.db.WithContext(ctx).Where("viewed = ?", false).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("fetch unviewed confessions: %w", err)
	}
	return out, nil
}
