package models

import (
	"gorm.io/gorm"
	"time"
)

type User struct {
	gorm.Model
	PhoneNumber string `gorm:"unique"`
	Email string
	PasswordHash string
	FullName string
	Role string
	PhoneVerified bool
	EmailVerified bool
}

type LoginAttempts struct {
	gorm.Model
	PhoneNumber string `gorm:"unique"`
	NumAttempts uint
	BanExpiresAt time.Time
}

type OTPAttempts struct {
	gorm.Model
	Identifier string `gorm:"unique"`
	NumRequests uint
	RequestsBanExpiresAt time.Time
	NumAttempts uint
	AttemptsBanExpiresAt time.Time
}

type OTPCode struct {
	gorm.Model
	Identifier string
	Code string
	VerificationToken string
	CodeExpiresAt time.Time
}

type RefreshToken struct {
	gorm.Model
	UserID uint
	User User
	TokenString string
	TokenExpiresAt time.Time
}
