package db

import (
	"time"
)

// Channel constants
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// EmailTemplate is a notification template for the email channel.
type EmailTemplate struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TemplateKey string    `json:"template_key" gorm:"uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Subject     string    `json:"subject" gorm:"not null;default:''"`
	Body        string    `json:"body" gorm:"not null"`
	IsHTML      bool      `json:"is_html" gorm:"not null;default:false"`
	Priority    int       `json:"priority" gorm:"not null;default:100"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (EmailTemplate) TableName() string {
	return "email_templates"
}

// EmailTemplateSKU assigns a template to a product. A template with no
// assignments matches every order.
type EmailTemplateSKU struct {
	TemplateID int64  `json:"template_id" gorm:"primaryKey;autoIncrement:false"`
	SKU        string `json:"sku" gorm:"primaryKey;column:sku;index"`
}

func (EmailTemplateSKU) TableName() string {
	return "email_template_skus"
}

// SMSTemplate is a notification template for the SMS channel.
type SMSTemplate struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TemplateKey string    `json:"template_key" gorm:"uniqueIndex;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Body        string    `json:"body" gorm:"not null"`
	Priority    int       `json:"priority" gorm:"not null;default:100"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (SMSTemplate) TableName() string {
	return "sms_templates"
}

type SMSTemplateSKU struct {
	TemplateID int64  `json:"template_id" gorm:"primaryKey;autoIncrement:false"`
	SKU        string `json:"sku" gorm:"primaryKey;column:sku;index"`
}

func (SMSTemplateSKU) TableName() string {
	return "sms_template_skus"
}

// Setting is a key/value row mutated by the admin surface and read by the
// poller every cycle.
type Setting struct {
	Key   string `json:"key" gorm:"primaryKey"`
	Value string `json:"value"`
}

func (Setting) TableName() string {
	return "settings"
}

// EmailSentLog records a confirmed email send. Presence of the row means
// the template was delivered for the order; inserts are idempotent.
type EmailSentLog struct {
	OrderID    string    `json:"order_id" gorm:"primaryKey"`
	TemplateID int64     `json:"template_id" gorm:"primaryKey;autoIncrement:false"`
	SentAt     time.Time `json:"sent_at" gorm:"not null"`
}

func (EmailSentLog) TableName() string {
	return "email_sent_log"
}

type SMSSentLog struct {
	OrderID    string    `json:"order_id" gorm:"primaryKey"`
	TemplateID int64     `json:"template_id" gorm:"primaryKey;autoIncrement:false"`
	SentAt     time.Time `json:"sent_at" gorm:"not null"`
}

func (SMSSentLog) TableName() string {
	return "sms_sent_log"
}

// Template is the channel-neutral view handed to the matcher and poller.
// Subject and IsHTML are only meaningful for the email channel.
type Template struct {
	ID          int64
	TemplateKey string
	Name        string
	Subject     string
	Body        string
	IsHTML      bool
	Priority    int
	IsActive    bool
	UpdatedAt   time.Time
	SKUs        []string
}
