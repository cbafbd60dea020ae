package app

import (
	"context"
	"testing"
)

func TestSubmitAnswerRejectsBlank(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	bobID, _ := pairCouple(t, a)
	if _, err := a.SubmitAnswer(bobID, "   "); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitAnswerRejectsSecondAnswer(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	bobID, _ := pairCouple(t, a)
	if _, err := a.SubmitAnswer(bobID, "first"); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if _, err := a.SubmitAnswer(bobID, "second"); err != ErrAnswerAlreadyExists {
		t.Fatalf("expected ErrAnswerAlreadyExists, got %v", err)
	}
}

func TestSubmitAnswerNotifiesPartner(t *testing.T) {
	a, rec, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	bobID, aliceID := pairCouple(t, a)
	rec.reset()
	if _, err := a.SubmitAnswer(bobID, "hello"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sent := rec.waitForCount(t, 1)
	if sent[0].UserID != aliceID {
		t.Fatalf("notification went to %s, want %s", sent[0].UserID, aliceID)
	}
}

func TestTodayAnswersLockedUntilOwnAnswer(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	bobID, aliceID := pairCouple(t, a)
	if _, err := a.SubmitAnswer(aliceID, "alice's answer"); err != nil {
		t.Fatalf("alice answers: %v", err)
	}
	// bob has not answered; even alice's answered-status stays hidden
	if _, err := a.GetTodayAnswers(bobID); err != ErrPartnerAnswerLocked {
		t.Fatalf("expected ErrPartnerAnswerLocked, got %v", err)
	}
}

func TestPartnerAnswerMaskedWithoutReveal(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	bobID, aliceID := pairCouple(t, a)
	if _, err := a.SubmitAnswer(bobID, "bob's answer"); err != nil {
		t.Fatalf("bob: %v", err)
	}
	if _, err := a.SubmitAnswer(aliceID, "alice's secret"); err != nil {
		t.Fatalf("alice: %v", err)
	}

	answers, err := a.GetTodayAnswers(bobID)
	if err != nil {
		t.Fatalf("get answers: %v", err)
	}
	if answers.Mine.Content != "bob's answer" {
		t.Fatalf("own answer mangled: %q", answers.Mine.Content)
	}
	if !answers.Partner.Written {
		t.Fatal("partner answer should show as written")
	}
	if answers.Partner.Revealed {
		t.Fatal("partner answer should not be revealed")
	}
	if answers.Partner.Content != lockedContent {
		t.Fatalf("expected %q placeholder, got %q", lockedContent, answers.Partner.Content)
	}
}

func TestPartnerNotAnsweredShowsWrittenFalse(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	bobID, _ := pairCouple(t, a)
	if _, err := a.SubmitAnswer(bobID, "bob's answer"); err != nil {
		t.Fatalf("bob: %v", err)
	}
	answers, err := a.GetTodayAnswers(bobID)
	if err != nil {
		t.Fatalf("get answers: %v", err)
	}
	if answers.Partner.Written {
		t.Fatal("partner has not written yet")
	}
	if answers.Partner.Content != "" {
		t.Fatalf("unwritten partner answer leaked content: %q", answers.Partner.Content)
	}
}

func TestRevealUnlocksPartnerAnswer(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	bobID, aliceID := pairCouple(t, a)
	if _, err := a.SubmitAnswer(bobID, "bob's answer"); err != nil {
		t.Fatalf("bob: %v", err)
	}
	if _, err := a.SubmitAnswer(aliceID, "alice's secret"); err != nil {
		t.Fatalf("alice: %v", err)
	}

	answers, err := a.GetTodayAnswers(bobID)
	if err != nil {
		t.Fatalf("get answers: %v", err)
	}
	view, err := a.RevealPartnerAnswer(bobID, answers.Partner.ID)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !view.Revealed || view.Content != "alice's secret" {
		t.Fatalf("reveal did not unlock: %+v", view)
	}

	// revealing again is a no-op
	if _, err := a.RevealPartnerAnswer(bobID, answers.Partner.ID); err != nil {
		t.Fatalf("second reveal: %v", err)
	}

	// the grant is permanent and one-directional
	after, err := a.GetTodayAnswers(bobID)
	if err != nil {
		t.Fatalf("get answers after reveal: %v", err)
	}
	if after.Partner.Content != "alice's secret" {
		t.Fatalf("grant not applied on read: %q", after.Partner.Content)
	}
	aliceView, err := a.GetTodayAnswers(aliceID)
	if err != nil {
		t.Fatalf("alice's view: %v", err)
	}
	if aliceView.Partner.Revealed {
		t.Fatal("bob's reveal must not unlock alice's view")
	}
}

func TestSubscriptionRevealsWithoutGrant(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 3)
	bobID, aliceID := pairCouple(t, a)
	if _, err := a.SubmitAnswer(bobID, "bob"); err != nil {
		t.Fatalf("bob: %v", err)
	}
	if _, err := a.SubmitAnswer(aliceID, "alice"); err != nil {
		t.Fatalf("alice: %v", err)
	}

	couple, ok, err := a.store.GetCouple(coupleIDOf(t, a, bobID))
	if err != nil || !ok {
		t.Fatalf("fetch couple: ok=%v err=%v", ok, err)
	}
	couple.IsSubscribed = true
	if err := a.store.SaveCouple(couple); err != nil {
		t.Fatalf("save couple: %v", err)
	}

	answers, err := a.GetTodayAnswers(bobID)
	if err != nil {
		t.Fatalf("get answers: %v", err)
	}
	if !answers.Partner.Revealed || answers.Partner.Content != "alice" {
		t.Fatalf("subscription should reveal: %+v", answers.Partner)
	}
}

func TestRevealValidations(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	seedQuestions(t, a, 10)
	bobID, _ := pairCouple(t, a)
	myAnswer, err := a.SubmitAnswer(bobID, "bob's answer")
	if err != nil {
		t.Fatalf("bob: %v", err)
	}

	if _, err := a.RevealPartnerAnswer(bobID, "missing"); err != ErrAnswerNotFound {
		t.Fatalf("unknown answer: expected ErrAnswerNotFound, got %v", err)
	}
	if _, err := a.RevealPartnerAnswer(bobID, myAnswer.ID); err != ErrSelfReveal {
		t.Fatalf("own answer: expected ErrSelfReveal, got %v", err)
	}

	// an answer from a different couple is out of reach
	carol, err := a.CreateUser("carol")
	if err != nil {
		t.Fatalf("create carol: %v", err)
	}
	dave, err := a.CreateUser("dave")
	if err != nil {
		t.Fatalf("create dave: %v", err)
	}
	ctx := context.Background()
	if err := a.RequestConnection(ctx, dave.ID, carol.InviteCode); err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := a.AcceptConnection(ctx, carol.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	foreign, err := a.SubmitAnswer(carol.ID, "carol's answer")
	if err != nil {
		t.Fatalf("carol: %v", err)
	}
	if _, err := a.RevealPartnerAnswer(bobID, foreign.ID); err != ErrAccessDenied {
		t.Fatalf("cross-couple: expected ErrAccessDenied, got %v", err)
	}
}
