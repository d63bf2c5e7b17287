package auth

import (
	"time"

	"github.com/tech-arch1tect/sessiongate/services/identity"
	"github.com/tech-arch1tect/sessiongate/services/permission"
	"github.com/tech-arch1tect/sessiongate/services/session"
)

type LoginRequest struct {
	Username   string `json:"username" example:"jdoe"`
	Password   string `json:"password" example:"Password123!"`
	RememberMe bool   `json:"rememberMe,omitempty" doc:"Issue a long-lived session"`
}

type UserResponse struct {
	Subject     string   `json:"subject"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions"`
	IsAdmin     bool     `json:"isAdmin"`
}

// TokenResponse carries the access token. The refresh token only ever travels in the session cookie.
type TokenResponse struct {
	AccessToken      string       `json:"accessToken"`
	TokenType        string       `json:"tokenType" example:"Bearer"`
	ExpiresIn        int64        `json:"expiresIn" doc:"Access token lifetime in seconds"`
	SessionExpiresIn int64        `json:"sessionExpiresIn" doc:"Seconds until the session cookie expires"`
	User             UserResponse `json:"user"`
}

type SessionResponse struct {
	ID               string    `json:"id"`
	Device           string    `json:"device"`
	IPAddress        string    `json:"ipAddress"`
	MACAddress       string    `json:"macAddress,omitempty"`
	UserAgent        string    `json:"userAgent"`
	CreatedAt        time.Time `json:"createdAt"`
	LastUsedAt       time.Time `json:"lastUsedAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RemainingSeconds int64     `json:"remainingSeconds"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type RegisterResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

func userFromIdentity(id *permission.Identity) UserResponse {
	return UserResponse{
		Subject:     id.Subject,
		Name:        id.Name,
		Email:       id.Email,
		Permissions: id.Permissions.Keys(),
		IsAdmin:     id.IsAdmin,
	}
}

func userFromRecord(r *identity.Record) UserResponse {
	return userFromIdentity(permission.FromRecord(r))
}

func sessionResponse(s *session.Session, remaining int64) SessionResponse {
	return SessionResponse{
		ID:               s.ID,
		Device:           s.Device,
		IPAddress:        s.IPAddress,
		MACAddress:       s.MACAddress,
		UserAgent:        s.UserAgent,
		CreatedAt:        s.CreatedAt,
		LastUsedAt:       s.LastUsedAt,
		ExpiresAt:        s.ExpiresAt,
		RemainingSeconds: remaining,
	}
}
