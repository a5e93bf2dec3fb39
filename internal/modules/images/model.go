package images

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityType names what an attachment decorates.
type EntityType string

const (
	EntityCustomer EntityType = "customer"
	EntityWatch    EntityType = "watch"
)

// Category classifies an attachment.
type Category string

const (
	CategoryProfile        Category = "profile"
	CategoryIdentification Category = "identification"
	CategoryProduct        Category = "product"
)

// categoriesFor lists the categories each entity type accepts.
var categoriesFor = map[EntityType][]Category{
	EntityCustomer: {CategoryProfile, CategoryIdentification},
	EntityWatch:    {CategoryProduct},
}

// allowedMIME is the upload allowlist, checked against sniffed content.
var allowedMIME = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/heic",
	"application/pdf",
}

// ImageAttachment is the metadata of one stored file.
type ImageAttachment struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	CompanyID    string     `gorm:"type:uuid;not null;index:image_attachments_entity_idx" json:"company_id"`
	EntityType   EntityType `gorm:"not null;index:image_attachments_entity_idx" json:"entity_type"`
	EntityID     string     `gorm:"type:uuid;not null;index:image_attachments_entity_idx" json:"entity_id"`
	Category     Category   `gorm:"not null" json:"category"`
	Filename     string     `gorm:"not null" json:"filename"`
	OriginalName string     `json:"original_name"`
	Size         int64      `gorm:"not null" json:"size"`
	MimeType     string     `gorm:"not null" json:"mime_type"`
	URL          string     `gorm:"not null" json:"url"`
	UploadedAt   time.Time  `json:"uploaded_at"`
}

func (ImageAttachment) TableName() string { return "image_attachments" }

// BeforeCreate assigns the id when the caller did not.
func (a *ImageAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
