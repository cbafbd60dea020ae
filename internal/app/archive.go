package app

import (
	"fmt"
	"time"

	"unlockd/pkg/domain"
)

// ArchiveEntry is one past (or current) question in the couple's history.
type ArchiveEntry struct {
	QuestionID      string                  `json:"questionId"`
	QuestionContent string                  `json:"questionContent"`
	Category        domain.QuestionCategory `json:"category"`
	Date            time.Time               `json:"date"`
	MyAnswered      bool                    `json:"myAnswered"`
	PartnerAnswered bool                    `json:"partnerAnswered"`
}

// ArchiveDetail is one archived question with both answers, the partner's
// masked under the same disclosure rule as today's view.
type ArchiveDetail struct {
	Question domain.Question   `json:"question"`
	Date     time.Time         `json:"date"`
	Mine     *MyAnswer         `json:"mine,omitempty"`
	Partner  PartnerAnswerView `json:"partner"`
}

// ListArchive returns the couple's question history, newest first.
func (a *App) ListArchive(userID string) ([]ArchiveEntry, error) {
	_, couple, err := a.userAndCouple(userID)
	if err != nil {
		return nil, err
	}
	assignments, err := a.store.ListAssignmentsByCouple(couple.ID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	partnerID := couple.PartnerOf(userID)
	entries := make([]ArchiveEntry, 0, len(assignments))
	for _, assignment := range assignments {
		question, err := a.questionOf(assignment)
		if err != nil {
			return nil, err
		}
		mine, err := a.store.HasAnswer(userID, question.ID)
		if err != nil {
			return nil, fmt.Errorf("check answer: %w", err)
		}
		partner, err := a.store.HasAnswer(partnerID, question.ID)
		if err != nil {
			return nil, fmt.Errorf("check answer: %w", err)
		}
		entries = append(entries, ArchiveEntry{
			QuestionID:      question.ID,
			QuestionContent: question.Content,
			Category:        question.Category,
			Date:            assignment.AssignedDate,
			MyAnswered:      mine,
			PartnerAnswered: partner,
		})
	}
	return entries, nil
}

// GetArchiveDetail returns one archived question with both answers. The
// question must belong to the caller's couple's history.
func (a *App) GetArchiveDetail(userID, questionID string) (ArchiveDetail, error) {
	_, couple, err := a.userAndCouple(userID)
	if err != nil {
		return ArchiveDetail{}, err
	}
	assignments, err := a.store.ListAssignmentsByCouple(couple.ID)
	if err != nil {
		return ArchiveDetail{}, fmt.Errorf("list assignments: %w", err)
	}
	var assignment domain.Assignment
	found := false
	for _, candidate := range assignments {
		if candidate.QuestionID == questionID {
			assignment = candidate
			found = true
			break
		}
	}
	if !found {
		return ArchiveDetail{}, ErrQuestionNotFound
	}
	question, err := a.questionOf(assignment)
	if err != nil {
		return ArchiveDetail{}, err
	}

	detail := ArchiveDetail{Question: question, Date: assignment.AssignedDate}
	if mine, ok, err := a.store.GetAnswerByUserAndQuestion(userID, questionID); err != nil {
		return ArchiveDetail{}, fmt.Errorf("fetch own answer: %w", err)
	} else if ok {
		detail.Mine = &MyAnswer{ID: mine.ID, Content: mine.Content, CreatedAt: mine.CreatedAt}
	}

	partner, err := a.GetUser(couple.PartnerOf(userID))
	if err != nil {
		return ArchiveDetail{}, err
	}
	detail.Partner, err = a.partnerAnswerView(userID, partner, couple, questionID)
	if err != nil {
		return ArchiveDetail{}, err
	}
	// the reciprocity rule holds in the archive too: without an own answer
	// the partner's content stays locked, subscription or not
	if detail.Mine == nil && detail.Partner.Written {
		detail.Partner.Revealed = false
		detail.Partner.Content = lockedContent
	}
	return detail, nil
}
