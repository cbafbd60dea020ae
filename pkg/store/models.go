package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID         string `gorm:"primaryKey"`
	Nickname   string `gorm:"not null"`
	InviteCode string `gorm:"uniqueIndex"`
	CoupleID   *string
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time
}

type CoupleModel struct {
	ID               string         `gorm:"primaryKey"`
	UserAID          string         `gorm:"not null"`
	UserBID          string         `gorm:"not null"`
	StartDate        datatypes.Date `gorm:"not null"`
	NotificationTime string         `gorm:"not null;index"`
	IsSubscribed     bool           `gorm:"not null"`
	CreatedAt        time.Time      `gorm:"not null"`
	UpdatedAt        time.Time
}

type QuestionModel struct {
	ID        string    `gorm:"primaryKey"`
	Content   string    `gorm:"type:text;not null"`
	Category  string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// One row per couple per active question. The unique index on
// (couple_id, assigned_date) is the storage-level guard against two
// assignments landing on the same day.
type AssignmentModel struct {
	ID           string         `gorm:"primaryKey"`
	CoupleID     string         `gorm:"not null;uniqueIndex:idx_assignments_couple_date;index"`
	QuestionID   string         `gorm:"not null"`
	AssignedDate datatypes.Date `gorm:"not null;uniqueIndex:idx_assignments_couple_date"`
	CreatedAt    time.Time      `gorm:"not null"`
}

type AnswerModel struct {
	ID         string    `gorm:"primaryKey"`
	QuestionID string    `gorm:"not null;uniqueIndex:idx_answers_question_user"`
	UserID     string    `gorm:"not null;uniqueIndex:idx_answers_question_user;index"`
	Content    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type RevealGrantModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_reveals_user_answer;index"`
	AnswerID  string    `gorm:"not null;uniqueIndex:idx_reveals_user_answer"`
	CreatedAt time.Time `gorm:"not null"`
}
