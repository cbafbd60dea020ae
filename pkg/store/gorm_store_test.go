package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"

	"unlockd/pkg/domain"
)

func newTestStore(t *testing.T, options ...GormStoreOption) *GormStore {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := NewGormStoreWithDialector(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		options...,
	)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

func TestUserInviteCodeUnique(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	if err := s.SaveUser(domain.User{ID: "u1", Nickname: "a", InviteCode: "AAAA1111", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("save u1: %v", err)
	}
	err := s.SaveUser(domain.User{ID: "u2", Nickname: "b", InviteCode: "AAAA1111", CreatedAt: now, UpdatedAt: now})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestSaveUserUpserts(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	user := domain.User{ID: "u1", Nickname: "a", InviteCode: "AAAA1111", CreatedAt: now, UpdatedAt: now}
	if err := s.SaveUser(user); err != nil {
		t.Fatalf("save: %v", err)
	}
	user.CoupleID = "c1"
	user.InviteCode = "BBBB2222"
	if err := s.SaveUser(user); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, ok, err := s.GetUser("u1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.CoupleID != "c1" || got.InviteCode != "BBBB2222" {
		t.Fatalf("update lost: %+v", got)
	}
}

func TestAssignmentSameDayDuplicate(t *testing.T) {
	s := newTestStore(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := s.CreateAssignment(domain.Assignment{ID: "a1", CoupleID: "c1", QuestionID: "q1", AssignedDate: day}); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := s.CreateAssignment(domain.Assignment{ID: "a2", CoupleID: "c1", QuestionID: "q2", AssignedDate: day})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// same day for another couple is fine
	if err := s.CreateAssignment(domain.Assignment{ID: "a3", CoupleID: "c2", QuestionID: "q1", AssignedDate: day}); err != nil {
		t.Fatalf("other couple: %v", err)
	}
}

func TestAssignmentDateNormalized(t *testing.T) {
	s := newTestStore(t)
	late := time.Date(2024, 5, 1, 23, 45, 12, 0, time.UTC)
	if err := s.CreateAssignment(domain.Assignment{ID: "a1", CoupleID: "c1", QuestionID: "q1", AssignedDate: late}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, ok, err := s.GetAssignmentByDate("c1", time.Date(2024, 5, 1, 0, 0, 1, 0, time.UTC))
	if err != nil || !ok {
		t.Fatalf("get by date: ok=%v err=%v", ok, err)
	}
	if !got.AssignedDate.Equal(domain.DateOf(late)) {
		t.Fatalf("date not normalized: %v", got.AssignedDate)
	}
}

func TestMoveAssignmentDateConflict(t *testing.T) {
	s := newTestStore(t)
	day1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	if err := s.CreateAssignment(domain.Assignment{ID: "a1", CoupleID: "c1", QuestionID: "q1", AssignedDate: day1}); err != nil {
		t.Fatalf("a1: %v", err)
	}
	if err := s.CreateAssignment(domain.Assignment{ID: "a2", CoupleID: "c1", QuestionID: "q2", AssignedDate: day2}); err != nil {
		t.Fatalf("a2: %v", err)
	}
	err := s.MoveAssignmentDate("a1", day2)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := s.MoveAssignmentDate("a1", day2.Add(24*time.Hour)); err != nil {
		t.Fatalf("move to free day: %v", err)
	}
}

func TestPickRandomUnassignedExcludesHistory(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.SaveQuestion(domain.Question{ID: fmt.Sprintf("q%d", i), Content: fmt.Sprintf("question %d", i), Category: domain.CategoryDaily}); err != nil {
			t.Fatalf("save q%d: %v", i, err)
		}
	}
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		assignment := domain.Assignment{
			ID:           fmt.Sprintf("a%d", i),
			CoupleID:     "c1",
			QuestionID:   fmt.Sprintf("q%d", i),
			AssignedDate: day.Add(time.Duration(i) * 24 * time.Hour),
		}
		if err := s.CreateAssignment(assignment); err != nil {
			t.Fatalf("assign a%d: %v", i, err)
		}
	}

	q, ok, err := s.PickRandomUnassigned("c1")
	if err != nil {
		t.Fatalf("pick: %v", err)
	}
	if !ok || q.ID != "q2" {
		t.Fatalf("expected the only unassigned question q2, got ok=%v %+v", ok, q)
	}

	// a couple with no history can draw anything
	if _, ok, err := s.PickRandomUnassigned("c2"); err != nil || !ok {
		t.Fatalf("fresh couple draw: ok=%v err=%v", ok, err)
	}

	if err := s.CreateAssignment(domain.Assignment{ID: "a2", CoupleID: "c1", QuestionID: "q2", AssignedDate: day.Add(48 * time.Hour)}); err != nil {
		t.Fatalf("assign q2: %v", err)
	}
	if _, ok, err := s.PickRandomUnassigned("c1"); err != nil || ok {
		t.Fatalf("exhausted pool should report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestAnswerPerQuestionUnique(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateAnswer(domain.Answer{ID: "ans1", QuestionID: "q1", UserID: "u1", Content: "x"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	err := s.CreateAnswer(domain.Answer{ID: "ans2", QuestionID: "q1", UserID: "u1", Content: "y"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := s.CreateAnswer(domain.Answer{ID: "ans3", QuestionID: "q1", UserID: "u2", Content: "z"}); err != nil {
		t.Fatalf("partner answer: %v", err)
	}
}

func TestRevealGrantIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateRevealGrant(domain.RevealGrant{ID: "g1", UserID: "u1", AnswerID: "ans1"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := s.CreateRevealGrant(domain.RevealGrant{ID: "g2", UserID: "u1", AnswerID: "ans1"}); err != nil {
		t.Fatalf("repeat should be a no-op: %v", err)
	}
	ok, err := s.HasRevealGrant("u1", "ans1")
	if err != nil || !ok {
		t.Fatalf("grant missing: ok=%v err=%v", ok, err)
	}
	if ok, _ := s.HasRevealGrant("u2", "ans1"); ok {
		t.Fatal("grant leaked to another user")
	}
}

func TestTransactRollsBack(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	boom := errors.New("boom")
	err := s.Transact(func(tx Store) error {
		if err := tx.SaveUser(domain.User{ID: "u1", Nickname: "a", InviteCode: "AAAA1111", CreatedAt: now, UpdatedAt: now}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok, err := s.GetUser("u1"); err != nil || ok {
		t.Fatalf("rollback failed: ok=%v err=%v", ok, err)
	}
}

func TestAnswerEncryptedAtRest(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, err := NewAnswerCipher(key)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	s := newTestStore(t, WithAnswerCipher(cipher))

	if err := s.CreateAnswer(domain.Answer{ID: "ans1", QuestionID: "q1", UserID: "u1", Content: "deep secret"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	var raw AnswerModel
	if err := s.db.First(&raw, "id = ?", "ans1").Error; err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if raw.Content == "deep secret" {
		t.Fatal("answer stored in plaintext")
	}

	got, ok, err := s.GetAnswer("ans1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Content != "deep secret" {
		t.Fatalf("round-trip failed: %q", got.Content)
	}
}
