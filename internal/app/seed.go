package app

import (
	"fmt"
	"log/slog"

	"unlockd/internal/util"
	"unlockd/pkg/domain"
)

var starterQuestions = []struct {
	content  string
	category domain.QuestionCategory
}{
	{"What moment today made you think of me the most?", domain.CategoryDaily},
	{"What small habit of mine do you secretly enjoy?", domain.CategoryDaily},
	{"If we could repeat one day we spent together, which would you pick?", domain.CategoryDaily},
	{"When did you first realize you were falling for me?", domain.CategoryRomance},
	{"What is the most romantic thing you have never told me you wanted?", domain.CategoryRomance},
	{"Describe our relationship in exactly three words.", domain.CategoryRomance},
	{"What is something you find attractive about me that I probably don't know?", domain.CategorySpicy},
	{"What is one daydream about us you have never said out loud?", domain.CategorySpicy},
	{"What is a fear you have about us that we have never talked about?", domain.CategoryDeepTalk},
	{"What do you hope we look like as a couple ten years from now?", domain.CategoryDeepTalk},
}

// SeedDefaultQuestions loads the starter question pool into an empty
// database. A non-empty pool is left untouched.
func (a *App) SeedDefaultQuestions() error {
	count, err := a.store.QuestionCount()
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if count > 0 {
		return nil
	}
	now := a.now().UTC()
	for _, q := range starterQuestions {
		question := domain.Question{
			ID:        util.NewID(),
			Content:   q.content,
			Category:  q.category,
			CreatedAt: now,
		}
		if err := a.store.SaveQuestion(question); err != nil {
			return fmt.Errorf("seed question: %w", err)
		}
	}
	slog.Info("seeded starter questions", "count", len(starterQuestions))
	return nil
}

// AddQuestion inserts one question into the shared pool.
func (a *App) AddQuestion(content string, category domain.QuestionCategory) (domain.Question, error) {
	if content == "" {
		return domain.Question{}, ErrInvalidInput
	}
	switch category {
	case domain.CategoryDaily, domain.CategoryRomance, domain.CategorySpicy, domain.CategoryDeepTalk:
	default:
		return domain.Question{}, ErrInvalidInput
	}
	question := domain.Question{
		ID:        util.NewID(),
		Content:   content,
		Category:  category,
		CreatedAt: a.now().UTC(),
	}
	if err := a.store.SaveQuestion(question); err != nil {
		return domain.Question{}, fmt.Errorf("save question: %w", err)
	}
	return question, nil
}
