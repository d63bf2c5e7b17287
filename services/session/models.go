package session

import (
	"strings"
	"time"

	"github.com/mileusna/useragent"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Session is a persisted refresh session. The raw token is never stored, only its digest.
type Session struct {
	ID          string     `json:"id" gorm:"primaryKey;size:26"`
	TokenDigest string     `json:"-" gorm:"uniqueIndex;size:128;not null"`
	Subject     string     `json:"subject" gorm:"index;size:255;not null"`
	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
	LastUsedAt  time.Time  `json:"last_used_at" gorm:"not null"`
	ExpiresAt   time.Time  `json:"expires_at" gorm:"index;not null"`
	Revoked     bool       `json:"revoked" gorm:"index;not null"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	IPAddress   string     `json:"ip_address" gorm:"size:64"`
	MACAddress  string     `json:"mac_address" gorm:"size:64"`
	UserAgent   string     `json:"user_agent" gorm:"size:500"`
	Device      string     `json:"device" gorm:"size:255"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = ulid.Make().String()
	}
	return nil
}

// TTL is the span the session was issued with.
func (s *Session) TTL() time.Duration {
	return s.ExpiresAt.Sub(s.CreatedAt)
}

// Metadata is client information recorded for audit only. It never influences validation.
type Metadata struct {
	IPAddress  string
	MACAddress string
	UserAgent  string
}

func (m Metadata) IsZero() bool {
	return m.IPAddress == "" && m.MACAddress == "" && m.UserAgent == ""
}

// Issued is returned exactly once per session. RawToken is the only copy of the secret.
type Issued struct {
	RawToken  string
	SessionID string
	Subject   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (i *Issued) TTL() time.Duration {
	return i.ExpiresAt.Sub(i.CreatedAt)
}

type RefreshResult struct {
	Session *Session
	// Rotated is nil when the presented token stays valid.
	Rotated *Issued
}

// DescribeDevice renders a short label such as "Chrome 120 on Windows 10 (Desktop)".
func DescribeDevice(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	deviceType := "Desktop"
	switch {
	case ua.Mobile:
		deviceType = "Mobile"
	case ua.Tablet:
		deviceType = "Tablet"
	case ua.Bot:
		deviceType = "Bot"
	}

	browser := "Unknown Browser"
	if ua.Name != "" {
		browser = strings.TrimSpace(ua.Name + " " + ua.Version)
	}

	os := "Unknown OS"
	if ua.OS != "" {
		os = strings.TrimSpace(ua.OS + " " + ua.OSVersion)
	}

	return browser + " on " + os + " (" + deviceType + ")"
}
