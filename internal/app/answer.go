package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"unlockd/internal/util"
	"unlockd/pkg/domain"
	"unlockd/pkg/store"
)

// lockedContent is the placeholder sent instead of a partner answer the
// viewer has not unlocked.
const lockedContent = "LOCKED"

// MyAnswer is the caller's own answer, always fully visible.
type MyAnswer struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// PartnerAnswerView is the partner's answer as the caller may see it.
// Content carries the real text only when Revealed is true.
type PartnerAnswerView struct {
	ID        string    `json:"id,omitempty"`
	Nickname  string    `json:"nickname"`
	Written   bool      `json:"written"`
	Revealed  bool      `json:"revealed"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// TodayAnswers pairs both sides of today's question for one viewer.
type TodayAnswers struct {
	Question domain.Question   `json:"question"`
	Mine     MyAnswer          `json:"mine"`
	Partner  PartnerAnswerView `json:"partner"`
}

// SubmitAnswer records the caller's answer to today's question. One answer
// per member per question; answers are immutable once written.
func (a *App) SubmitAnswer(userID, content string) (MyAnswer, error) {
	if strings.TrimSpace(content) == "" {
		return MyAnswer{}, ErrInvalidInput
	}
	user, couple, err := a.userAndCouple(userID)
	if err != nil {
		return MyAnswer{}, err
	}
	active, err := a.resolveActiveQuestion(couple.ID)
	if err != nil {
		return MyAnswer{}, err
	}
	answer := domain.Answer{
		ID:         util.NewID(),
		QuestionID: active.Question.ID,
		UserID:     userID,
		Content:    content,
		CreatedAt:  a.now().UTC(),
	}
	if err := a.store.CreateAnswer(answer); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return MyAnswer{}, ErrAnswerAlreadyExists
		}
		return MyAnswer{}, fmt.Errorf("create answer: %w", err)
	}
	a.notifyUser(couple.PartnerOf(userID), "Answer arrived",
		fmt.Sprintf("%s has answered today's question!", user.Nickname))
	return MyAnswer{ID: answer.ID, Content: answer.Content, CreatedAt: answer.CreatedAt}, nil
}

// GetTodayAnswers returns both members' answers to today's question. The
// caller must have answered first; until then even the partner's answer
// status stays hidden.
func (a *App) GetTodayAnswers(userID string) (TodayAnswers, error) {
	_, couple, err := a.userAndCouple(userID)
	if err != nil {
		return TodayAnswers{}, err
	}
	active, err := a.resolveActiveQuestion(couple.ID)
	if err != nil {
		return TodayAnswers{}, err
	}

	mine, ok, err := a.store.GetAnswerByUserAndQuestion(userID, active.Question.ID)
	if err != nil {
		return TodayAnswers{}, fmt.Errorf("fetch own answer: %w", err)
	}
	if !ok {
		return TodayAnswers{}, ErrPartnerAnswerLocked
	}

	partnerID := couple.PartnerOf(userID)
	partner, err := a.GetUser(partnerID)
	if err != nil {
		return TodayAnswers{}, err
	}
	partnerView, err := a.partnerAnswerView(userID, partner, couple, active.Question.ID)
	if err != nil {
		return TodayAnswers{}, err
	}

	return TodayAnswers{
		Question: active.Question,
		Mine:     MyAnswer{ID: mine.ID, Content: mine.Content, CreatedAt: mine.CreatedAt},
		Partner:  partnerView,
	}, nil
}

// partnerAnswerView shapes one partner answer for a viewer, masking the
// content unless the viewer has a reveal grant or the couple is subscribed.
func (a *App) partnerAnswerView(viewerID string, partner domain.User, couple domain.Couple, questionID string) (PartnerAnswerView, error) {
	answer, ok, err := a.store.GetAnswerByUserAndQuestion(partner.ID, questionID)
	if err != nil {
		return PartnerAnswerView{}, fmt.Errorf("fetch partner answer: %w", err)
	}
	if !ok {
		return PartnerAnswerView{Nickname: partner.Nickname}, nil
	}
	revealed := couple.IsSubscribed
	if !revealed {
		revealed, err = a.store.HasRevealGrant(viewerID, answer.ID)
		if err != nil {
			return PartnerAnswerView{}, fmt.Errorf("check reveal grant: %w", err)
		}
	}
	view := PartnerAnswerView{
		ID:        answer.ID,
		Nickname:  partner.Nickname,
		Written:   true,
		Revealed:  revealed,
		Content:   lockedContent,
		CreatedAt: answer.CreatedAt,
	}
	if revealed {
		view.Content = answer.Content
	}
	return view, nil
}

// RevealPartnerAnswer grants the caller permanent visibility of one partner
// answer. The caller's client charges for this (payment or a rewarded ad)
// before calling; the grant itself is idempotent.
func (a *App) RevealPartnerAnswer(userID, answerID string) (PartnerAnswerView, error) {
	user, _, err := a.userAndCouple(userID)
	if err != nil {
		return PartnerAnswerView{}, err
	}

	answer, ok, err := a.store.GetAnswer(answerID)
	if err != nil {
		return PartnerAnswerView{}, fmt.Errorf("fetch answer: %w", err)
	}
	if !ok {
		return PartnerAnswerView{}, ErrAnswerNotFound
	}
	if answer.UserID == user.ID {
		return PartnerAnswerView{}, ErrSelfReveal
	}

	author, err := a.GetUser(answer.UserID)
	if err != nil {
		return PartnerAnswerView{}, err
	}
	if author.CoupleID != user.CoupleID {
		return PartnerAnswerView{}, ErrAccessDenied
	}
	if strings.TrimSpace(answer.Content) == "" {
		return PartnerAnswerView{}, ErrPartnerNotAnswered
	}

	grant := domain.RevealGrant{
		ID:        util.NewID(),
		UserID:    userID,
		AnswerID:  answerID,
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.CreateRevealGrant(grant); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return PartnerAnswerView{}, fmt.Errorf("create reveal grant: %w", err)
	}

	return PartnerAnswerView{
		ID:        answer.ID,
		Nickname:  author.Nickname,
		Written:   true,
		Revealed:  true,
		Content:   answer.Content,
		CreatedAt: answer.CreatedAt,
	}, nil
}
