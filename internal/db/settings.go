package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settings keys. status_from_ids and status_to_id are mutated by the admin
// surface; token keys are written by the API client's refresh callback.
const (
	settingStatusFromIDs = "status_from_ids"
	settingStatusToID    = "status_to_id"
	settingAccessToken   = "apilo_access_token"
	settingRefreshToken  = "apilo_refresh_token"
	settingAccessExp     = "apilo_access_exp"
	settingRefreshExp    = "apilo_refresh_exp"
)

// GetSetting returns the raw value for key, or def when absent.
func (s *Store) GetSetting(ctx context.Context, key, def string) (string, error) {
	var row Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return row.Value, nil
}

// SetSetting upserts a key/value pair.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// StatusFromIDs returns the configured source statuses, or def when unset.
// Stored as a comma-separated list; non-numeric entries are ignored.
func (s *Store) StatusFromIDs(ctx context.Context, def []int) ([]int, error) {
	raw, err := s.GetSetting(ctx, settingStatusFromIDs, "")
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return def, nil
	}
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		ids = append(ids, n)
	}
	if len(ids) == 0 {
		return def, nil
	}
	return ids, nil
}

// SetStatusFromIDs stores the source status set.
func (s *Store) SetStatusFromIDs(ctx context.Context, ids []int) error {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return s.SetSetting(ctx, settingStatusFromIDs, strings.Join(parts, ","))
}

// StatusToID returns the configured target status, or def when unset.
func (s *Store) StatusToID(ctx context.Context, def int) (int, error) {
	raw, err := s.GetSetting(ctx, settingStatusToID, "")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// SetStatusToID stores the target status.
func (s *Store) SetStatusToID(ctx context.Context, id int) error {
	return s.SetSetting(ctx, settingStatusToID, strconv.Itoa(id))
}

// ApiloAccessToken returns the cached access token, empty when unset.
func (s *Store) ApiloAccessToken(ctx context.Context) (string, error) {
	return s.GetSetting(ctx, settingAccessToken, "")
}

// ApiloRefreshToken returns the cached refresh token, empty when unset.
func (s *Store) ApiloRefreshToken(ctx context.Context) (string, error) {
	return s.GetSetting(ctx, settingRefreshToken, "")
}

// SetApiloTokens persists both tokens and, when present, their expirations.
func (s *Store) SetApiloTokens(ctx context.Context, access, refresh, accessExp, refreshExp string) error {
	if err := s.SetSetting(ctx, settingAccessToken, access); err != nil {
		return err
	}
	if err := s.SetSetting(ctx, settingRefreshToken, refresh); err != nil {
		return err
	}
	if accessExp != "" {
		if err := s.SetSetting(ctx, settingAccessExp, accessExp); err != nil {
			return err
		}
	}
	if refreshExp != "" {
		if err := s.SetSetting(ctx, settingRefreshExp, refreshExp); err != nil {
			return err
		}
	}
	return nil
}
