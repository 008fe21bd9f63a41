package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tutor is a persona: a system prompt plus display metadata. Rows are
// created by the seed operation and are read-only to the chat engine.
type Tutor struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	// Key is the stable seed identifier (e.g. "maths_tutor"); unique so the
	// seed operation is idempotent.
	Key string `gorm:"type:text;not null;uniqueIndex" json:"key"`

	Name         string `gorm:"type:text;not null" json:"name"`
	Subject      string `gorm:"type:text;not null;index" json:"subject"`
	Description  string `gorm:"type:text;not null;default:''" json:"description"`
	SystemPrompt string `gorm:"type:text;not null" json:"system_prompt"`
	AvatarURL    string `gorm:"type:text;not null;default:''" json:"avatar_url,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Tutor) TableName() string { return "tutor" }
