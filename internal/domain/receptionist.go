package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// slugPattern restricts slugs to lowercase letters, digits and hyphens.
var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Receptionist represents a configured virtual receptionist. The record mirrors
// the remote conversational agent's prompt, first message and voice; the remote
// provider stays authoritative for live behavior, agent_config is an audit
// snapshot of the configuration last confirmed remotely.
type Receptionist struct {
	ID           string               `json:"id" gorm:"type:uuid;primary_key"`
	Slug         string               `json:"slug" gorm:"type:varchar(255);not null;uniqueIndex:idx_receptionist_slug"`
	Name         string               `json:"name" gorm:"type:varchar(255);not null"`
	AgentID      *string              `json:"agent_id" gorm:"type:varchar(255);index"`
	AgentConfig  *AgentConfigSnapshot `json:"agent_config" gorm:"type:jsonb"`
	FirstMessage string               `json:"first_message" gorm:"type:text"`
	Prompt       string               `json:"prompt" gorm:"type:text"`
	VoiceID      string               `json:"voice_id" gorm:"type:varchar(255)"`
	IsActive     bool                 `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time            `json:"updated_at" gorm:"autoUpdateTime"`
	CreatedBy    *string              `json:"created_by" gorm:"type:varchar(255)"`
}

// TableName sets the table name for Receptionist
func (Receptionist) TableName() string {
	return "virtual_receptionists"
}

// BeforeCreate assigns an ID when the caller did not provide one.
func (r *Receptionist) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// CreateReceptionistRequest represents the request to create a new receptionist
type CreateReceptionistRequest struct {
	Slug         string `json:"slug" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Prompt       string `json:"prompt" validate:"required"`
	FirstMessage string `json:"first_message" validate:"required"`
	VoiceID      string `json:"voice_id" validate:"required"`
}

// Validate checks the request before any collaborator is called.
func (req *CreateReceptionistRequest) Validate() error {
	for field, value := range map[string]string{
		"slug":          req.Slug,
		"name":          req.Name,
		"prompt":        req.Prompt,
		"first_message": req.FirstMessage,
		"voice_id":      req.VoiceID,
	} {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Reason: "must not be empty"}
		}
	}
	if !slugPattern.MatchString(req.Slug) {
		return &ValidationError{Field: "slug", Reason: "must contain only lowercase letters, digits and hyphens"}
	}
	return nil
}

// ReceptionistUpdate represents a partial update to a receptionist. Only
// non-nil fields change; present values merge over the stored record.
type ReceptionistUpdate struct {
	Slug         *string `json:"slug,omitempty"`
	Name         *string `json:"name,omitempty"`
	Prompt       *string `json:"prompt,omitempty"`
	FirstMessage *string `json:"first_message,omitempty"`
	VoiceID      *string `json:"voice_id,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u *ReceptionistUpdate) IsEmpty() bool {
	return u.Slug == nil && u.Name == nil && u.Prompt == nil && u.FirstMessage == nil && u.VoiceID == nil
}

// TouchesAgent reports whether applying the update requires pushing a new
// configuration to the remote agent. Name is included so the remote agent's
// display name cannot drift from the local record.
func (u *ReceptionistUpdate) TouchesAgent() bool {
	return u.Name != nil || u.Prompt != nil || u.FirstMessage != nil || u.VoiceID != nil
}

// Validate checks the present fields of a partial update.
func (u *ReceptionistUpdate) Validate() error {
	check := func(field string, value *string) error {
		if value == nil {
			return nil
		}
		if strings.TrimSpace(*value) == "" {
			return &ValidationError{Field: field, Reason: "must not be empty"}
		}
		return nil
	}
	for field, value := range map[string]*string{
		"name":          u.Name,
		"prompt":        u.Prompt,
		"first_message": u.FirstMessage,
		"voice_id":      u.VoiceID,
	} {
		if err := check(field, value); err != nil {
			return err
		}
	}
	if u.Slug != nil {
		if strings.TrimSpace(*u.Slug) == "" {
			return &ValidationError{Field: "slug", Reason: "must not be empty"}
		}
		if !slugPattern.MatchString(*u.Slug) {
			return &ValidationError{Field: "slug", Reason: "must contain only lowercase letters, digits and hyphens"}
		}
	}
	return nil
}

// AgentConfigSnapshot is the stored copy of the remote agent configuration.
// It mirrors the provider's conversation config shape but is designed for
// database storage (jsonb column).
type AgentConfigSnapshot struct {
	Agent AgentSettings `json:"agent"`
	ASR   ASRSettings   `json:"asr"`
	TTS   TTSSettings   `json:"tts"`
}

// AgentSettings holds the conversational part of the agent configuration.
type AgentSettings struct {
	Language     string         `json:"language"`
	Prompt       PromptSettings `json:"prompt"`
	FirstMessage string         `json:"first_message"`
}

// PromptSettings holds the system prompt and built-in capability flags.
type PromptSettings struct {
	Prompt       string   `json:"prompt"`
	BuiltInTools []string `json:"built_in_tools,omitempty"`
}

// ASRSettings holds the speech-recognition quality/provider pair.
type ASRSettings struct {
	Quality  string `json:"quality"`
	Provider string `json:"provider"`
}

// TTSSettings holds the synthesis model and voice.
type TTSSettings struct {
	ModelID string `json:"model_id"`
	VoiceID string `json:"voice_id"`
}

// Value implements driver.Valuer for AgentConfigSnapshot
func (a AgentConfigSnapshot) Value() (driver.Value, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Scan implements sql.Scanner for AgentConfigSnapshot
func (a *AgentConfigSnapshot) Scan(value interface{}) error {
	if value == nil {
		*a = AgentConfigSnapshot{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into AgentConfigSnapshot", value)
	}

	return json.Unmarshal(bytes, a)
}
