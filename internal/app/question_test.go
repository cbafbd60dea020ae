package app

import (
	"sync"
	"testing"
	"time"
)

func TestTodayQuestionDrawsFresh(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 5)
	bobID, _ := pairCouple(t, a)

	today, err := a.GetTodayQuestion(bobID)
	if err != nil {
		t.Fatalf("get today question: %v", err)
	}
	if today.Question.ID == "" {
		t.Fatal("expected a question")
	}
	if today.IsAnswered {
		t.Fatal("fresh question should not be answered")
	}

	again, err := a.GetTodayQuestion(bobID)
	if err != nil {
		t.Fatalf("get today question again: %v", err)
	}
	if again.Question.ID != today.Question.ID {
		t.Fatalf("question changed within the same day: %s vs %s", again.Question.ID, today.Question.ID)
	}
}

func TestTodayQuestionSharedAcrossCouple(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 5)
	bobID, aliceID := pairCouple(t, a)

	forBob, err := a.GetTodayQuestion(bobID)
	if err != nil {
		t.Fatalf("bob: %v", err)
	}
	forAlice, err := a.GetTodayQuestion(aliceID)
	if err != nil {
		t.Fatalf("alice: %v", err)
	}
	if forBob.Question.ID != forAlice.Question.ID {
		t.Fatalf("couple got different questions: %s vs %s", forBob.Question.ID, forAlice.Question.ID)
	}
}

func TestUnansweredQuestionCarriesOver(t *testing.T) {
	a, _, _, clock := newTestApp(t)
	seedQuestions(t, a, 5)
	bobID, _ := pairCouple(t, a)

	day1, err := a.GetTodayQuestion(bobID)
	if err != nil {
		t.Fatalf("day 1: %v", err)
	}
	if _, err := a.SubmitAnswer(bobID, "only bob answers"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	clock.Advance(24 * time.Hour)
	day2, err := a.GetTodayQuestion(bobID)
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	if day2.Question.ID != day1.Question.ID {
		t.Fatalf("incomplete question did not carry over: %s vs %s", day2.Question.ID, day1.Question.ID)
	}
	if !day2.IsAnswered {
		t.Fatal("bob's answer should survive the carry-over")
	}

	assignments, err := a.store.ListAssignmentsByCouple(coupleIDOf(t, a, bobID))
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("carry-over must move the row, not add one: got %d", len(assignments))
	}
	if !assignments[0].AssignedDate.Equal(a.today()) {
		t.Fatalf("assignment date not moved to today: %v", assignments[0].AssignedDate)
	}
}

func TestCompletedQuestionRotates(t *testing.T) {
	a, _, _, clock := newTestApp(t)
	seedQuestions(t, a, 5)
	bobID, aliceID := pairCouple(t, a)

	day1, err := a.GetTodayQuestion(bobID)
	if err != nil {
		t.Fatalf("day 1: %v", err)
	}
	if _, err := a.SubmitAnswer(bobID, "bob"); err != nil {
		t.Fatalf("bob answers: %v", err)
	}
	if _, err := a.SubmitAnswer(aliceID, "alice"); err != nil {
		t.Fatalf("alice answers: %v", err)
	}

	clock.Advance(24 * time.Hour)
	day2, err := a.GetTodayQuestion(bobID)
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	if day2.Question.ID == day1.Question.ID {
		t.Fatal("completed question must not repeat the next day")
	}
}

func TestQuestionsNeverRepeatUntilPoolExhausted(t *testing.T) {
	a, _, _, clock := newTestApp(t)
	const poolSize = 4
	seedQuestions(t, a, poolSize)
	bobID, aliceID := pairCouple(t, a)

	seen := map[string]bool{}
	for day := 0; day < poolSize; day++ {
		today, err := a.GetTodayQuestion(bobID)
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		if seen[today.Question.ID] {
			t.Fatalf("question %s repeated on day %d", today.Question.ID, day)
		}
		seen[today.Question.ID] = true
		if _, err := a.SubmitAnswer(bobID, "bob"); err != nil {
			t.Fatalf("day %d bob: %v", day, err)
		}
		if _, err := a.SubmitAnswer(aliceID, "alice"); err != nil {
			t.Fatalf("day %d alice: %v", day, err)
		}
		clock.Advance(24 * time.Hour)
	}

	if _, err := a.GetTodayQuestion(bobID); err != ErrQuestionPoolExhausted {
		t.Fatalf("expected ErrQuestionPoolExhausted, got %v", err)
	}
}

func TestConcurrentResolutionCreatesOneAssignment(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 10)
	bobID, aliceID := pairCouple(t, a)

	const workers = 8
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := bobID
			if i%2 == 1 {
				userID = aliceID
			}
			today, err := a.GetTodayQuestion(userID)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = today.Question.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatalf("workers saw different questions: %s vs %s", results[i], results[0])
		}
	}
	assignments, err := a.store.ListAssignmentsByCouple(coupleIDOf(t, a, bobID))
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("expected exactly one assignment, got %d", len(assignments))
	}
}

func TestTodayQuestionRequiresCouple(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	solo, err := a.CreateUser("solo")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := a.GetTodayQuestion(solo.ID); err != ErrCoupleNotFound {
		t.Fatalf("expected ErrCoupleNotFound, got %v", err)
	}
}

func coupleIDOf(t *testing.T, a *App, userID string) string {
	t.Helper()
	user, err := a.GetUser(userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.Coupled() {
		t.Fatalf("user %s is not coupled", userID)
	}
	return user.CoupleID
}
