package model

import "time"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// User struct
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Username  string     `gorm:"uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"not null" json:"-"`
	AvatarURL *string    `json:"avatar_url"`
	Status    string     `gorm:"not null;default:offline" json:"status"`
	LastSeen  *time.Time `json:"last_seen"`
	Role      string     `json:"role"`

	OtpEnabled bool   `gorm:"default:false" json:"otp"`
	OtpSecret  string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contact is one direction of a symmetric contact edge. Adding a contact
// writes both directions, removing one deletes both.
type Contact struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_contacts_pair" json:"user_id"`
	ContactID uint      `gorm:"not null;uniqueIndex:idx_contacts_pair;index" json:"contact_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Contact   User      `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
