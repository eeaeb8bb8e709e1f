package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm/clause"
)

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id uint) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// LeadMinutes returns the user's configured minutes-before-start for agent
// joins, or def when the user has no settings.
func (s *Store) LeadMinutes(ctx context.Context, userID uint, def int) (int, error) {
	var settings UserSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&settings).Error
	if err != nil {
		return def, fmt.Errorf("failed to load settings for user %d: %w", userID, err)
	}
	if settings.ID == 0 {
		return def, nil
	}
	return settings.BotJoinMinutesBefore, nil
}

// SetLeadMinutes stores the user's minutes-before-start for agent joins.
func (s *Store) SetLeadMinutes(ctx context.Context, userID uint, minutes int) error {
	settings := UserSettings{UserID: userID, BotJoinMinutesBefore: minutes}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"bot_join_minutes_before": minutes, "updated_at": time.Now()}),
	}).Create(&settings).Error
	if err != nil {
		return fmt.Errorf("failed to save settings for user %d: %w", userID, err)
	}
	return nil
}
