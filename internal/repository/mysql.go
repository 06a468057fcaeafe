package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"turnero/internal/model"
	v1 "turnero/pkg/api/v1"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore keeps one row per profile in client_sessions.
type SQLStore struct {
	db      *gorm.DB
	profile string
}

func NewSQLStore(db *gorm.DB, profile string) *SQLStore {
	return &SQLStore{db: db, profile: profile}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.SessionRecord{})
}

func (r *SQLStore) Load(ctx context.Context) (*v1.Session, error) {
	var rec model.SessionRecord
	err := r.find(r.db.WithContext(ctx), &rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := &v1.Session{
		AccessToken:  rec.Access,
		RefreshToken: rec.Refresh,
		AccessExp:    rec.AccessExp,
	}
	if rec.User != "" {
		if err := json.Unmarshal([]byte(rec.User), &s.User); err != nil {
			return nil, fmt.Errorf("decode user profile: %w", err)
		}
	}
	if !s.Complete() {
		return nil, nil
	}
	return s, nil
}

// Save upserts the row, so all four columns change in one statement.
func (r *SQLStore) Save(ctx context.Context, s *v1.Session) error {
	rec := model.SessionRecord{
		Profile:   r.profile,
		Access:    s.AccessToken,
		Refresh:   s.RefreshToken,
		AccessExp: s.AccessExp,
	}
	if s.User != nil {
		b, err := json.Marshal(s.User)
		if err != nil {
			return fmt.Errorf("encode user profile: %w", err)
		}
		rec.User = string(b)
	}
	return r.upsert(r.db.WithContext(ctx), &rec).Error
}

func (r *SQLStore) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("profile = ?", r.profile).
		Delete(&model.SessionRecord{}).Error
}

func (r *SQLStore) find(tx *gorm.DB, rec *model.SessionRecord) *gorm.DB {
	return tx.Where("profile = ?", r.profile).First(rec)
}

func (r *SQLStore) upsert(tx *gorm.DB, rec *model.SessionRecord) *gorm.DB {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rec)
}
