package app

import (
	"errors"
	"fmt"

	"unlockd/internal/util"
	"unlockd/pkg/domain"
	"unlockd/pkg/store"
)

// ActiveQuestion is the couple's question for today. AssignedToday is true
// only when this resolution itself placed the assignment on today's date,
// either by carrying an unfinished question forward or by drawing a fresh
// one.
type ActiveQuestion struct {
	Question      domain.Question
	AssignedToday bool
}

// TodayQuestion is the per-user view of the active question.
type TodayQuestion struct {
	Question   domain.Question `json:"question"`
	IsAnswered bool            `json:"isAnswered"`
}

// GetTodayQuestion resolves the couple's active question and reports whether
// the calling user has answered it yet.
func (a *App) GetTodayQuestion(userID string) (TodayQuestion, error) {
	_, couple, err := a.userAndCouple(userID)
	if err != nil {
		return TodayQuestion{}, err
	}
	active, err := a.resolveActiveQuestion(couple.ID)
	if err != nil {
		return TodayQuestion{}, err
	}
	answered, err := a.store.HasAnswer(userID, active.Question.ID)
	if err != nil {
		return TodayQuestion{}, fmt.Errorf("check answer: %w", err)
	}
	return TodayQuestion{Question: active.Question, IsAnswered: answered}, nil
}

// resolveActiveQuestion collapses concurrent resolutions for the same couple
// and day onto a single execution.
func (a *App) resolveActiveQuestion(coupleID string) (ActiveQuestion, error) {
	today := a.today()
	key := coupleID + "@" + today.Format("2006-01-02")
	v, err, _ := a.assignGroup.Do(key, func() (interface{}, error) {
		return a.resolveActiveQuestionOnce(coupleID)
	})
	if err != nil {
		return ActiveQuestion{}, err
	}
	return v.(ActiveQuestion), nil
}

// resolveActiveQuestionOnce applies the carry-over rule:
//
//  1. an assignment already sits on today's date: return it as-is
//  2. the latest assignment has at least one member unanswered: move its
//     date to today (the question carries over)
//  3. otherwise draw a random never-assigned question for the couple
//
// Concurrent resolutions racing past the singleflight layer (separate
// replicas) are settled by the (couple, date) uniqueness constraint: the
// loser re-reads the winner's row.
func (a *App) resolveActiveQuestionOnce(coupleID string) (ActiveQuestion, error) {
	today := a.today()

	if assignment, ok, err := a.store.GetAssignmentByDate(coupleID, today); err != nil {
		return ActiveQuestion{}, fmt.Errorf("fetch today's assignment: %w", err)
	} else if ok {
		question, err := a.questionOf(assignment)
		if err != nil {
			return ActiveQuestion{}, err
		}
		return ActiveQuestion{Question: question, AssignedToday: false}, nil
	}

	latest, ok, err := a.store.LatestAssignment(coupleID)
	if err != nil {
		return ActiveQuestion{}, fmt.Errorf("fetch latest assignment: %w", err)
	}
	if ok {
		complete, err := a.assignmentComplete(coupleID, latest)
		if err != nil {
			return ActiveQuestion{}, err
		}
		if !complete {
			if err := a.store.MoveAssignmentDate(latest.ID, today); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return a.rereadToday(coupleID)
				}
				return ActiveQuestion{}, fmt.Errorf("carry assignment over: %w", err)
			}
			question, err := a.questionOf(latest)
			if err != nil {
				return ActiveQuestion{}, err
			}
			return ActiveQuestion{Question: question, AssignedToday: true}, nil
		}
	}

	question, ok, err := a.store.PickRandomUnassigned(coupleID)
	if err != nil {
		return ActiveQuestion{}, fmt.Errorf("draw question: %w", err)
	}
	if !ok {
		return ActiveQuestion{}, ErrQuestionPoolExhausted
	}
	assignment := domain.Assignment{
		ID:           util.NewID(),
		CoupleID:     coupleID,
		QuestionID:   question.ID,
		AssignedDate: today,
		CreatedAt:    a.now().UTC(),
	}
	if err := a.store.CreateAssignment(assignment); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return a.rereadToday(coupleID)
		}
		return ActiveQuestion{}, fmt.Errorf("create assignment: %w", err)
	}
	return ActiveQuestion{Question: question, AssignedToday: true}, nil
}

// rereadToday fetches the assignment another writer placed on today's date.
func (a *App) rereadToday(coupleID string) (ActiveQuestion, error) {
	assignment, ok, err := a.store.GetAssignmentByDate(coupleID, a.today())
	if err != nil {
		return ActiveQuestion{}, fmt.Errorf("refetch today's assignment: %w", err)
	}
	if !ok {
		return ActiveQuestion{}, fmt.Errorf("assignment conflict but no row for today")
	}
	question, err := a.questionOf(assignment)
	if err != nil {
		return ActiveQuestion{}, err
	}
	return ActiveQuestion{Question: question, AssignedToday: false}, nil
}

func (a *App) questionOf(assignment domain.Assignment) (domain.Question, error) {
	question, ok, err := a.store.GetQuestion(assignment.QuestionID)
	if err != nil {
		return domain.Question{}, fmt.Errorf("fetch question: %w", err)
	}
	if !ok {
		return domain.Question{}, ErrQuestionNotFound
	}
	return question, nil
}

// assignmentComplete reports whether both members of the couple answered the
// assigned question.
func (a *App) assignmentComplete(coupleID string, assignment domain.Assignment) (bool, error) {
	couple, ok, err := a.store.GetCouple(coupleID)
	if err != nil {
		return false, fmt.Errorf("fetch couple: %w", err)
	}
	if !ok {
		return false, ErrCoupleNotFound
	}
	for _, memberID := range []string{couple.UserAID, couple.UserBID} {
		answered, err := a.store.HasAnswer(memberID, assignment.QuestionID)
		if err != nil {
			return false, fmt.Errorf("check answer: %w", err)
		}
		if !answered {
			return false, nil
		}
	}
	return true, nil
}
