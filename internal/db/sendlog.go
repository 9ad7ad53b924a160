package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownChannel is returned for channels other than email and sms.
var ErrUnknownChannel = errors.New("unknown notification channel")

// WasSent reports whether a confirmed send is already recorded for the
// (order, template) pair on the given channel.
func (s *Store) WasSent(ctx context.Context, channel, orderID string, templateID int64) (bool, error) {
	var count int64
	var err error
	switch channel {
	case ChannelEmail:
		err = s.db.WithContext(ctx).Model(&EmailSentLog{}).
			Where("order_id = ? AND template_id = ?", orderID, templateID).
			Count(&count).Error
	case ChannelSMS:
		err = s.db.WithContext(ctx).Model(&SMSSentLog{}).
			Where("order_id = ? AND template_id = ?", orderID, templateID).
			Count(&count).Error
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	if err != nil {
		return false, fmt.Errorf("query %s send log: %w", channel, err)
	}
	return count > 0, nil
}

// MarkSent records a confirmed send. Inserting an existing pair is a no-op,
// so the call is safe to repeat. It must only run after the sender reported
// success, never before.
func (s *Store) MarkSent(ctx context.Context, channel, orderID string, templateID int64) error {
	now := time.Now().UTC()
	var err error
	switch channel {
	case ChannelEmail:
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
			Create(&EmailSentLog{OrderID: orderID, TemplateID: templateID, SentAt: now}).Error
	case ChannelSMS:
		err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
			Create(&SMSSentLog{OrderID: orderID, TemplateID: templateID, SentAt: now}).Error
	default:
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("record %s send: %w", channel, err)
	}
	return nil
}
