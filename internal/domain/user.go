// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen      = 45
	MaxUsernameLen    = 100
	MaxDeviceTokenLen = 1000
)

var (
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
	ErrUsernameTooLong    = errors.New("username too long")
	ErrDeviceTokenTooLong = errors.New("device token too long")
)

type UserID string

func (id UserID) String() string { return string(id) }

// User is a user-directory entry. DeviceToken addresses the push channel
// used to wake the user's device for an incoming call.
type User struct {
	ID          UserID `json:"userId"`
	DeviceToken string `json:"deviceToken,omitempty"`
	Name        string `json:"name,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id, name, deviceToken string) (*User, error) {
	u := &User{ID: UserID(strings.TrimSpace(id))}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := u.SetUsername(name); err != nil {
		return nil, err
	}
	if err := u.SetDeviceToken(deviceToken); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) Validate() error {
	if len(u.ID) == 0 {
		return ErrUserIDEmpty
	}
	if len(u.ID) > MaxUserIDLen {
		return ErrUserIDTooLong
	}
	if len(u.Name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	if len(u.DeviceToken) > MaxDeviceTokenLen {
		return ErrDeviceTokenTooLong
	}
	return nil
}

func (u *User) SetUsername(username string) error {
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Name = username
	return nil
}

func (u *User) SetDeviceToken(token string) error {
	if len(token) > MaxDeviceTokenLen {
		return ErrDeviceTokenTooLong
	}
	u.DeviceToken = token
	return nil
}
