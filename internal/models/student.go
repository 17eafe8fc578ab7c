package models

import "time"

// Student represents a campus member who logs sustainability activities.
type Student struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	StudentNumber string    `gorm:"size:20;uniqueIndex;not null" json:"student_number"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Email         string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Program       string    `gorm:"size:100" json:"program"`
	Year          *int      `json:"year"`
	Department    string    `gorm:"size:100" json:"department"`
	Phone         string    `gorm:"size:15" json:"phone"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
