package models

import (
	"errors"
	"time"

	goval "github.com/go-passwd/validator"
	"github.com/leebenson/conform"
	"golang.org/x/crypto/bcrypt"
)

// User statuses broadcast on the global presence channel.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
)

// User represents a user of the application
type User struct {
	Model
	Fullname       string     `json:"fullname" binding:"required,min=2"`
	Username       string     `json:"username" gorm:"unique;not null" binding:"required,min=2"`
	Email          string     `json:"email" gorm:"unique;not null" binding:"required,email"`
	Password       string     `json:"password,omitempty" gorm:"-"`
	HashedPassword string     `json:"-"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Status         string     `json:"status" gorm:"default:offline"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
}

func (u *User) IsOnline() bool {
	return u.Status == StatusOnline
}

func (u *User) VerifyPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password))
}

func ValidatePassword(password string) error {
	passwordValidator := goval.New(goval.MinLength(6, errors.New("password cant be less than 6 characters")),
		goval.MaxLength(64, errors.New("password cant be more than 64 characters")))
	return passwordValidator.Validate(password)
}

// ScrubRequest trims and normalizes bound request fields per conform tags.
func ScrubRequest(data interface{}) error {
	return conform.Strings(data)
}

// UserResponse is the projection of a user embedded in payloads.
type UserResponse struct {
	ID        uint   `json:"id"`
	Fullname  string `json:"fullname"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Status    string `json:"status,omitempty"`
}

func (u *User) Response() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Fullname:  u.Fullname,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Status:    u.Status,
	}
}

// Blacklist holds access tokens invalidated by logout.
type Blacklist struct {
	Model
	Email string `json:"email"`
	Token string `json:"token" gorm:"index"`
}
