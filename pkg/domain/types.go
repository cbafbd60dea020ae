package domain

import "time"

type QuestionCategory string

const (
	CategoryDaily    QuestionCategory = "daily"
	CategoryRomance  QuestionCategory = "romance"
	CategorySpicy    QuestionCategory = "spicy"
	CategoryDeepTalk QuestionCategory = "deep_talk"
)

// DefaultNotificationTime is the minute-of-day couples are pinged unless they
// pick another one.
const DefaultNotificationTime = "22:00"

type User struct {
	ID         string    `json:"id"`
	Nickname   string    `json:"nickname"`
	InviteCode string    `json:"inviteCode"`
	CoupleID   string    `json:"coupleId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Coupled reports whether the user currently belongs to a couple.
func (u User) Coupled() bool {
	return u.CoupleID != ""
}

// Couple links exactly two users. The two slots are fixed at creation but the
// relationship itself is unordered.
type Couple struct {
	ID               string    `json:"id"`
	UserAID          string    `json:"userAId"`
	UserBID          string    `json:"userBId"`
	StartDate        time.Time `json:"startDate"`
	NotificationTime string    `json:"notificationTime"` // "HH:MM", minute resolution
	IsSubscribed     bool      `json:"isSubscribed"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// PartnerOf returns the other member's user id.
func (c Couple) PartnerOf(userID string) string {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// Question is a prompt from the shared pool. Immutable once created and never
// owned by any couple.
type Question struct {
	ID        string           `json:"id"`
	Content   string           `json:"content"`
	Category  QuestionCategory `json:"category"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Assignment records which question is active for a couple on a given date.
// AssignedDate is the only mutable field: carry-over advances it forward.
type Assignment struct {
	ID           string    `json:"id"`
	CoupleID     string    `json:"coupleId"`
	QuestionID   string    `json:"questionId"`
	AssignedDate time.Time `json:"assignedDate"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Answer struct {
	ID         string    `json:"id"`
	QuestionID string    `json:"questionId"`
	UserID     string    `json:"userId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RevealGrant's existence gives the viewing user permanent visibility of one
// partner answer. Created at most once per (user, answer).
type RevealGrant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	AnswerID  string    `json:"answerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// DateOf truncates t to a UTC calendar date. Assignment dates are stored and
// compared in this form only.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
