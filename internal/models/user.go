package models

import "time"

const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

type Student struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	DOB          time.Time `json:"dob"`
	CollegeName  string    `json:"college_name"`
	Degree       string    `json:"degree"`
	Attempts     []Attempt `json:"-" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}

// Admin is a singleton bootstrap record provisioned at startup if absent.
type Admin struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Name         string    `json:"name"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
}
