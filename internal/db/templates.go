package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTemplateNotFound is returned when a template id does not exist.
var ErrTemplateNotFound = errors.New("template not found")

// ListEmailTemplates returns every email template with its SKU assignments.
func (s *Store) ListEmailTemplates(ctx context.Context) ([]Template, error) {
	var rows []EmailTemplate
	if err := s.db.WithContext(ctx).
		Order("priority ASC, updated_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list email templates: %w", err)
	}

	var skuRows []EmailTemplateSKU
	if err := s.db.WithContext(ctx).Find(&skuRows).Error; err != nil {
		return nil, fmt.Errorf("list email template skus: %w", err)
	}

	skus := make(map[int64][]string, len(rows))
	for _, r := range skuRows {
		skus[r.TemplateID] = append(skus[r.TemplateID], r.SKU)
	}

	out := make([]Template, 0, len(rows))
	for _, r := range rows {
		out = append(out, Template{
			ID:          r.ID,
			TemplateKey: r.TemplateKey,
			Name:        r.Name,
			Subject:     r.Subject,
			Body:        r.Body,
			IsHTML:      r.IsHTML,
			Priority:    r.Priority,
			IsActive:    r.IsActive,
			UpdatedAt:   r.UpdatedAt,
			SKUs:        skus[r.ID],
		})
	}
	return out, nil
}

// ListSMSTemplates returns every SMS template with its SKU assignments.
func (s *Store) ListSMSTemplates(ctx context.Context) ([]Template, error) {
	var rows []SMSTemplate
	if err := s.db.WithContext(ctx).
		Order("priority ASC, updated_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sms templates: %w", err)
	}

	var skuRows []SMSTemplateSKU
	if err := s.db.WithContext(ctx).Find(&skuRows).Error; err != nil {
		return nil, fmt.Errorf("list sms template skus: %w", err)
	}

	skus := make(map[int64][]string, len(rows))
	for _, r := range skuRows {
		skus[r.TemplateID] = append(skus[r.TemplateID], r.SKU)
	}

	out := make([]Template, 0, len(rows))
	for _, r := range rows {
		out = append(out, Template{
			ID:          r.ID,
			TemplateKey: r.TemplateKey,
			Name:        r.Name,
			Body:        r.Body,
			Priority:    r.Priority,
			IsActive:    r.IsActive,
			UpdatedAt:   r.UpdatedAt,
			SKUs:        skus[r.ID],
		})
	}
	return out, nil
}

// GetEmailTemplate returns one email template by id.
func (s *Store) GetEmailTemplate(ctx context.Context, id int64) (*Template, error) {
	var row EmailTemplate
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email template %d: %w", id, err)
	}

	skus, err := s.emailSKUs(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Template{
		ID:          row.ID,
		TemplateKey: row.TemplateKey,
		Name:        row.Name,
		Subject:     row.Subject,
		Body:        row.Body,
		IsHTML:      row.IsHTML,
		Priority:    row.Priority,
		IsActive:    row.IsActive,
		UpdatedAt:   row.UpdatedAt,
		SKUs:        skus,
	}, nil
}

// GetSMSTemplate returns one SMS template by id.
func (s *Store) GetSMSTemplate(ctx context.Context, id int64) (*Template, error) {
	var row SMSTemplate
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sms template %d: %w", id, err)
	}

	var skuRows []SMSTemplateSKU
	if err := s.db.WithContext(ctx).Where("template_id = ?", id).Find(&skuRows).Error; err != nil {
		return nil, fmt.Errorf("get sms template skus: %w", err)
	}
	skus := make([]string, 0, len(skuRows))
	for _, r := range skuRows {
		skus = append(skus, r.SKU)
	}

	return &Template{
		ID:          row.ID,
		TemplateKey: row.TemplateKey,
		Name:        row.Name,
		Body:        row.Body,
		Priority:    row.Priority,
		IsActive:    row.IsActive,
		UpdatedAt:   row.UpdatedAt,
		SKUs:        skus,
	}, nil
}

// GetEmailTemplateByKey returns one email template by its key.
func (s *Store) GetEmailTemplateByKey(ctx context.Context, key string) (*Template, error) {
	var row EmailTemplate
	err := s.db.WithContext(ctx).Where("template_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email template %q: %w", key, err)
	}
	return s.GetEmailTemplate(ctx, row.ID)
}

// GetSMSTemplateByKey returns one SMS template by its key.
func (s *Store) GetSMSTemplateByKey(ctx context.Context, key string) (*Template, error) {
	var row SMSTemplate
	err := s.db.WithContext(ctx).Where("template_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sms template %q: %w", key, err)
	}
	return s.GetSMSTemplate(ctx, row.ID)
}

func (s *Store) emailSKUs(ctx context.Context, templateID int64) ([]string, error) {
	var rows []EmailTemplateSKU
	if err := s.db.WithContext(ctx).Where("template_id = ?", templateID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get email template skus: %w", err)
	}
	skus := make([]string, 0, len(rows))
	for _, r := range rows {
		skus = append(skus, r.SKU)
	}
	return skus, nil
}

// UpsertEmailTemplate inserts or updates a template by its key.
func (s *Store) UpsertEmailTemplate(ctx context.Context, tpl EmailTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "template_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "subject", "body", "is_html", "priority", "is_active", "updated_at",
		}),
	}).Create(&tpl).Error
	if err != nil {
		return fmt.Errorf("upsert email template %q: %w", tpl.TemplateKey, err)
	}
	return nil
}

// UpsertSMSTemplate inserts or updates a template by its key.
func (s *Store) UpsertSMSTemplate(ctx context.Context, tpl SMSTemplate) error {
	tpl.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "template_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "body", "priority", "is_active", "updated_at",
		}),
	}).Create(&tpl).Error
	if err != nil {
		return fmt.Errorf("upsert sms template %q: %w", tpl.TemplateKey, err)
	}
	return nil
}

// DeleteEmailTemplate removes a template and its SKU assignments.
func (s *Store) DeleteEmailTemplate(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&EmailTemplate{}, id).Error; err != nil {
			return fmt.Errorf("delete email template %d: %w", id, err)
		}
		if err := tx.Where("template_id = ?", id).Delete(&EmailTemplateSKU{}).Error; err != nil {
			return fmt.Errorf("delete email template skus %d: %w", id, err)
		}
		return nil
	})
}

// DeleteSMSTemplate removes a template and its SKU assignments.
func (s *Store) DeleteSMSTemplate(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&SMSTemplate{}, id).Error; err != nil {
			return fmt.Errorf("delete sms template %d: %w", id, err)
		}
		if err := tx.Where("template_id = ?", id).Delete(&SMSTemplateSKU{}).Error; err != nil {
			return fmt.Errorf("delete sms template skus %d: %w", id, err)
		}
		return nil
	})
}

// SetEmailTemplateSKUs replaces the SKU assignment set for a template.
// Blank entries are dropped.
func (s *Store) SetEmailTemplateSKUs(ctx context.Context, templateID int64, skus []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", templateID).Delete(&EmailTemplateSKU{}).Error; err != nil {
			return fmt.Errorf("clear email template skus: %w", err)
		}
		for _, sku := range skus {
			sku = strings.TrimSpace(sku)
			if sku == "" {
				continue
			}
			row := EmailTemplateSKU{TemplateID: templateID, SKU: sku}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("assign sku %q: %w", sku, err)
			}
		}
		return nil
	})
}

// SetSMSTemplateSKUs replaces the SKU assignment set for a template.
func (s *Store) SetSMSTemplateSKUs(ctx context.Context, templateID int64, skus []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", templateID).Delete(&SMSTemplateSKU{}).Error; err != nil {
			return fmt.Errorf("clear sms template skus: %w", err)
		}
		for _, sku := range skus {
			sku = strings.TrimSpace(sku)
			if sku == "" {
				continue
			}
			row := SMSTemplateSKU{TemplateID: templateID, SKU: sku}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("assign sku %q: %w", sku, err)
			}
		}
		return nil
	})
}
