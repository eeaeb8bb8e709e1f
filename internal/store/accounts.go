package store

import (
	"context"
	"fmt"
	"time"
)

// CreateAccount inserts a calendar account.
func (s *Store) CreateAccount(ctx context.Context, a *CalendarAccount) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to create calendar account: %w", err)
	}
	return nil
}

// GetAccount returns the account with id.
func (s *Store) GetAccount(ctx context.Context, id uint) (*CalendarAccount, error) {
	var a CalendarAccount
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ActiveAccounts returns the user's active calendar accounts.
func (s *Store) ActiveAccounts(ctx context.Context, userID uint) ([]CalendarAccount, error) {
	var accounts []CalendarAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("id").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for user %d: %w", userID, err)
	}
	return accounts, nil
}

// UpdateAccountToken persists refreshed credentials. An empty refreshToken
// keeps the stored one.
func (s *Store) UpdateAccountToken(ctx context.Context, accountID uint, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]any{
		"access_token": accessToken,
		"updated_at":   time.Now(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	if !expiry.IsZero() {
		updates["token_expiry"] = expiry
	}

	res := s.db.WithContext(ctx).Model(&CalendarAccount{}).Where("id = ?", accountID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update token of account %d: %w", accountID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateAccount marks an account inactive so it is no longer synced.
func (s *Store) DeactivateAccount(ctx context.Context, accountID uint) error {
	res := s.db.WithContext(ctx).Model(&CalendarAccount{}).Where("id = ?", accountID).
		Updates(map[string]any{"active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate account %d: %w", accountID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
