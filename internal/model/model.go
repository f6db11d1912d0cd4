package model

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Role         string         `gorm:"default:'user'" json:"role"` // admin, user
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const (
	DeviceOnline  = "online"
	DeviceOffline = "offline"
)

type Device struct {
	Name     string    `gorm:"primaryKey" json:"name"` // port or capture device name
	Kind     string    `json:"kind"`                   // serial, audio, null, tone
	PortName string    `json:"port_name"`
	VID      string    `gorm:"column:vid" json:"vid"`
	PID      string    `gorm:"column:pid" json:"pid"`
	Serial   string    `json:"serial"`
	Status   string    `json:"status"` // online, offline
	LastSeen time.Time `json:"last_seen"`
}

// Segment is one marked stretch of the acquired stream.
type Segment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Device     string    `gorm:"index" json:"device"`
	Sequence   uint64    `gorm:"index" json:"sequence"`
	Samples    int       `json:"samples"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Duration   float64   `json:"duration"` // seconds
	Peak       float64   `json:"peak"`
	RMS        float64   `gorm:"column:rms" json:"rms"`
	FilePath   string    `json:"file_path,omitempty"`
	Partial    bool      `json:"partial"` // flushed on stop rather than at a mark
	StartedAt  time.Time `gorm:"index" json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type Webhook struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Device    string    `gorm:"index" json:"device"`  // empty matches every device
	URL       string    `gorm:"not null" json:"url"`
	Platform  string    `json:"platform"`   // telegram, slack, generic
	ChannelID string    `json:"channel_id"` // For Telegram
	Template  string    `json:"template"`   // "Segment {{.Sequence}} from {{.Device}}: {{.Duration}}s"
	Enabled   bool      `gorm:"default:true" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}
