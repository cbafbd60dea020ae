package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"unlockd/pkg/domain"
)

type GormStoreOptions struct {
	AnswerCipher *AnswerCipher
}

type GormStoreOption func(*GormStoreOptions)

// WithAnswerCipher makes the store encrypt answer content at rest.
func WithAnswerCipher(cipher *AnswerCipher) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.AnswerCipher = cipher
	}
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db     *gorm.DB
	cipher *AnswerCipher
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	return NewGormStoreWithDialector(postgres.Open(dsn), options...)
}

// NewGormStoreWithDialector is the dialector-injectable constructor; tests use
// it with an in-memory SQLite database.
func NewGormStoreWithDialector(dialector gorm.Dialector, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{}, &CoupleModel{}, &QuestionModel{},
		&AssignmentModel{}, &AnswerModel{}, &RevealGrantModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db, cipher: opts.AnswerCipher}, nil
}

// Transact runs fn against a store bound to one transaction.
func (s *GormStore) Transact(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, cipher: s.cipher})
	})
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"nickname", "invite_code", "couple_id", "updated_at"}),
	}).Create(&model).Error
	return translateErr(err)
}

// GetUser returns a user by ID.
func (s *GormStore) GetUser(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByInviteCode resolves a user by invite code.
func (s *GormStore) GetUserByInviteCode(code string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "invite_code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SaveCouple stores or updates a couple. The two user slots and the start
// date never change after creation.
func (s *GormStore) SaveCouple(c domain.Couple) error {
	model := coupleToModel(c)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notification_time", "is_subscribed", "updated_at"}),
	}).Create(&model).Error
	return translateErr(err)
}

// GetCouple returns a couple by ID.
func (s *GormStore) GetCouple(id string) (domain.Couple, bool, error) {
	var model CoupleModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Couple{}, false, nil
		}
		return domain.Couple{}, false, err
	}
	return coupleFromModel(model), true, nil
}

// ListCouplesByNotificationTime returns couples whose notification minute
// equals hhmm.
func (s *GormStore) ListCouplesByNotificationTime(hhmm string) ([]domain.Couple, error) {
	var models []CoupleModel
	if err := s.db.Where("notification_time = ?", hhmm).Find(&models).Error; err != nil {
		return nil, err
	}
	couples := make([]domain.Couple, 0, len(models))
	for _, m := range models {
		couples = append(couples, coupleFromModel(m))
	}
	return couples, nil
}

// DeleteCouple removes the couple row.
func (s *GormStore) DeleteCouple(id string) error {
	return s.db.Delete(&CoupleModel{}, "id = ?", id).Error
}

// SaveQuestion adds a question to the shared pool.
func (s *GormStore) SaveQuestion(q domain.Question) error {
	model := questionToModel(q)
	return translateErr(s.db.Create(&model).Error)
}

// GetQuestion returns a question by ID.
func (s *GormStore) GetQuestion(id string) (domain.Question, bool, error) {
	var model QuestionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Question{}, false, nil
		}
		return domain.Question{}, false, err
	}
	return questionFromModel(model), true, nil
}

// QuestionCount returns the pool size.
func (s *GormStore) QuestionCount() (int, error) {
	var count int64
	if err := s.db.Model(&QuestionModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// PickRandomUnassigned draws a random question the couple has never been
// assigned. Uses the database's random() so the draw is uniform server-side.
func (s *GormStore) PickRandomUnassigned(coupleID string) (domain.Question, bool, error) {
	assigned := s.db.Model(&AssignmentModel{}).
		Select("question_id").
		Where("couple_id = ?", coupleID)
	var model QuestionModel
	err := s.db.Where("id NOT IN (?)", assigned).
		Order("random()").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Question{}, false, nil
		}
		return domain.Question{}, false, err
	}
	return questionFromModel(model), true, nil
}

// CreateAssignment inserts a new assignment row. A same-day duplicate for the
// couple surfaces as ErrDuplicate.
func (s *GormStore) CreateAssignment(a domain.Assignment) error {
	model := assignmentToModel(a)
	return translateErr(s.db.Create(&model).Error)
}

// GetAssignmentByDate finds the assignment for (couple, date).
func (s *GormStore) GetAssignmentByDate(coupleID string, date time.Time) (domain.Assignment, bool, error) {
	var model AssignmentModel
	err := s.db.Where("couple_id = ? AND assigned_date = ?", coupleID, datatypes.Date(domain.DateOf(date))).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Assignment{}, false, nil
		}
		return domain.Assignment{}, false, err
	}
	return assignmentFromModel(model), true, nil
}

// LatestAssignment returns the couple's most recent assignment by date.
func (s *GormStore) LatestAssignment(coupleID string) (domain.Assignment, bool, error) {
	var model AssignmentModel
	err := s.db.Where("couple_id = ?", coupleID).
		Order("assigned_date DESC, created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Assignment{}, false, nil
		}
		return domain.Assignment{}, false, err
	}
	return assignmentFromModel(model), true, nil
}

// MoveAssignmentDate advances an assignment's date (carry-over).
func (s *GormStore) MoveAssignmentDate(id string, date time.Time) error {
	err := s.db.Model(&AssignmentModel{}).
		Where("id = ?", id).
		Update("assigned_date", datatypes.Date(domain.DateOf(date))).Error
	return translateErr(err)
}

// ListAssignmentsByCouple returns all assignments, newest first.
func (s *GormStore) ListAssignmentsByCouple(coupleID string) ([]domain.Assignment, error) {
	var models []AssignmentModel
	if err := s.db.Where("couple_id = ?", coupleID).
		Order("assigned_date DESC, created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	assignments := make([]domain.Assignment, 0, len(models))
	for _, m := range models {
		assignments = append(assignments, assignmentFromModel(m))
	}
	return assignments, nil
}

// DeleteAssignmentsByCouple removes every assignment of the couple.
func (s *GormStore) DeleteAssignmentsByCouple(coupleID string) error {
	return s.db.Delete(&AssignmentModel{}, "couple_id = ?", coupleID).Error
}

// CreateAnswer persists a new answer. A second answer for the same
// (user, question) surfaces as ErrDuplicate.
func (s *GormStore) CreateAnswer(a domain.Answer) error {
	model, err := s.answerToModel(a)
	if err != nil {
		return err
	}
	return translateErr(s.db.Create(&model).Error)
}

// GetAnswer returns an answer by ID.
func (s *GormStore) GetAnswer(id string) (domain.Answer, bool, error) {
	var model AnswerModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Answer{}, false, nil
		}
		return domain.Answer{}, false, err
	}
	answer, err := s.answerFromModel(model)
	if err != nil {
		return domain.Answer{}, false, err
	}
	return answer, true, nil
}

// GetAnswerByUserAndQuestion returns the user's answer for a question.
func (s *GormStore) GetAnswerByUserAndQuestion(userID, questionID string) (domain.Answer, bool, error) {
	var model AnswerModel
	err := s.db.Where("user_id = ? AND question_id = ?", userID, questionID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Answer{}, false, nil
		}
		return domain.Answer{}, false, err
	}
	answer, err := s.answerFromModel(model)
	if err != nil {
		return domain.Answer{}, false, err
	}
	return answer, true, nil
}

// HasAnswer checks whether the user answered the question.
func (s *GormStore) HasAnswer(userID, questionID string) (bool, error) {
	var count int64
	if err := s.db.Model(&AnswerModel{}).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteAnswersByUser removes every answer written by the user.
func (s *GormStore) DeleteAnswersByUser(userID string) error {
	return s.db.Delete(&AnswerModel{}, "user_id = ?", userID).Error
}

// CreateRevealGrant records a reveal. Creating the same grant twice is a
// no-op; visibility is derived from existence, so there is nothing to update.
func (s *GormStore) CreateRevealGrant(g domain.RevealGrant) error {
	model := revealGrantToModel(g)
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

// HasRevealGrant checks whether the user holds a grant for the answer.
func (s *GormStore) HasRevealGrant(userID, answerID string) (bool, error) {
	var count int64
	if err := s.db.Model(&RevealGrantModel{}).
		Where("user_id = ? AND answer_id = ?", userID, answerID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteRevealGrantsByUser removes every grant held by the user.
func (s *GormStore) DeleteRevealGrantsByUser(userID string) error {
	return s.db.Delete(&RevealGrantModel{}, "user_id = ?", userID).Error
}

func userToModel(u domain.User) UserModel {
	var coupleID *string
	if u.CoupleID != "" {
		value := u.CoupleID
		coupleID = &value
	}
	return UserModel{
		ID:         u.ID,
		Nickname:   u.Nickname,
		InviteCode: u.InviteCode,
		CoupleID:   coupleID,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	coupleID := ""
	if m.CoupleID != nil {
		coupleID = *m.CoupleID
	}
	return domain.User{
		ID:         m.ID,
		Nickname:   m.Nickname,
		InviteCode: m.InviteCode,
		CoupleID:   coupleID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func coupleToModel(c domain.Couple) CoupleModel {
	return CoupleModel{
		ID:               c.ID,
		UserAID:          c.UserAID,
		UserBID:          c.UserBID,
		StartDate:        datatypes.Date(domain.DateOf(c.StartDate)),
		NotificationTime: c.NotificationTime,
		IsSubscribed:     c.IsSubscribed,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func coupleFromModel(m CoupleModel) domain.Couple {
	return domain.Couple{
		ID:               m.ID,
		UserAID:          m.UserAID,
		UserBID:          m.UserBID,
		StartDate:        domain.DateOf(time.Time(m.StartDate)),
		NotificationTime: m.NotificationTime,
		IsSubscribed:     m.IsSubscribed,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func questionToModel(q domain.Question) QuestionModel {
	return QuestionModel{
		ID:        q.ID,
		Content:   q.Content,
		Category:  string(q.Category),
		CreatedAt: q.CreatedAt,
	}
}

func questionFromModel(m QuestionModel) domain.Question {
	return domain.Question{
		ID:        m.ID,
		Content:   m.Content,
		Category:  domain.QuestionCategory(m.Category),
		CreatedAt: m.CreatedAt,
	}
}

func assignmentToModel(a domain.Assignment) AssignmentModel {
	return AssignmentModel{
		ID:           a.ID,
		CoupleID:     a.CoupleID,
		QuestionID:   a.QuestionID,
		AssignedDate: datatypes.Date(domain.DateOf(a.AssignedDate)),
		CreatedAt:    a.CreatedAt,
	}
}

func assignmentFromModel(m AssignmentModel) domain.Assignment {
	return domain.Assignment{
		ID:           m.ID,
		CoupleID:     m.CoupleID,
		QuestionID:   m.QuestionID,
		AssignedDate: domain.DateOf(time.Time(m.AssignedDate)),
		CreatedAt:    m.CreatedAt,
	}
}

func (s *GormStore) answerToModel(a domain.Answer) (AnswerModel, error) {
	content := a.Content
	if s.cipher != nil {
		sealed, err := s.cipher.Seal(content)
		if err != nil {
			return AnswerModel{}, fmt.Errorf("encrypt answer: %w", err)
		}
		content = sealed
	}
	return AnswerModel{
		ID:         a.ID,
		QuestionID: a.QuestionID,
		UserID:     a.UserID,
		Content:    content,
		CreatedAt:  a.CreatedAt,
	}, nil
}

func (s *GormStore) answerFromModel(m AnswerModel) (domain.Answer, error) {
	content := m.Content
	if s.cipher != nil {
		plain, err := s.cipher.Open(content)
		if err != nil {
			return domain.Answer{}, fmt.Errorf("decrypt answer: %w", err)
		}
		content = plain
	}
	return domain.Answer{
		ID:         m.ID,
		QuestionID: m.QuestionID,
		UserID:     m.UserID,
		Content:    content,
		CreatedAt:  m.CreatedAt,
	}, nil
}

func revealGrantToModel(g domain.RevealGrant) RevealGrantModel {
	return RevealGrantModel{
		ID:        g.ID,
		UserID:    g.UserID,
		AnswerID:  g.AnswerID,
		CreatedAt: g.CreatedAt,
	}
}
