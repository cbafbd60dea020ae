package store

import (
	"context"
	"errors"
	"time"

	"unlockd/pkg/domain"
)

// ErrDuplicate reports a write that lost against a uniqueness constraint
// (same-day assignment, second answer for a question, repeated invite code).
var ErrDuplicate = errors.New("duplicate record")

// Store defines durable persistence for users, couples, questions,
// assignments, answers, and reveal grants.
type Store interface {
	// users
	SaveUser(domain.User) error
	GetUser(id string) (domain.User, bool, error)
	GetUserByInviteCode(code string) (domain.User, bool, error)

	// couples
	SaveCouple(domain.Couple) error
	GetCouple(id string) (domain.Couple, bool, error)
	ListCouplesByNotificationTime(hhmm string) ([]domain.Couple, error)
	DeleteCouple(id string) error

	// questions
	SaveQuestion(domain.Question) error
	GetQuestion(id string) (domain.Question, bool, error)
	QuestionCount() (int, error)
	// PickRandomUnassigned draws one question uniformly at random among those
	// never assigned to the couple. ok=false means the pool is exhausted.
	PickRandomUnassigned(coupleID string) (domain.Question, bool, error)

	// assignments
	CreateAssignment(domain.Assignment) error
	GetAssignmentByDate(coupleID string, date time.Time) (domain.Assignment, bool, error)
	LatestAssignment(coupleID string) (domain.Assignment, bool, error)
	MoveAssignmentDate(id string, date time.Time) error
	ListAssignmentsByCouple(coupleID string) ([]domain.Assignment, error)
	DeleteAssignmentsByCouple(coupleID string) error

	// answers
	CreateAnswer(domain.Answer) error
	GetAnswer(id string) (domain.Answer, bool, error)
	GetAnswerByUserAndQuestion(userID, questionID string) (domain.Answer, bool, error)
	HasAnswer(userID, questionID string) (bool, error)
	DeleteAnswersByUser(userID string) error

	// reveal grants
	CreateRevealGrant(domain.RevealGrant) error
	HasRevealGrant(userID, answerID string) (bool, error)
	DeleteRevealGrantsByUser(userID string) error

	// Transact runs fn against a store bound to a single transaction.
	// fn returning an error rolls everything back.
	Transact(fn func(Store) error) error
}

// Ephemeral is a key→value store with per-key expiry and atomic
// set-if-absent. Expiry is passive: an expired key is simply absent on the
// next lookup.
type Ephemeral interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}
