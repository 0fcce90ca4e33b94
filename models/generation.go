package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GenerationRecord is the audit row written for every submitted generation.
type GenerationRecord struct {
	JsonModel
	SessionID    string   `gorm:"index" json:"session_id"`
	Kind         string   `json:"kind"`   // image, prompt, video
	Status       string   `json:"status"` // pending, completed, failed
	TechDetails  *string  `json:"tech_details"`
	MediaKey     *string  `json:"media_key"`
	ErrorMessage *string  `json:"error_message"`
	Duration     *float64 `json:"duration"` // in seconds
}
