package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"unlockd/internal/util"
	"unlockd/pkg/domain"
	"unlockd/pkg/notify"
	"unlockd/pkg/store"
)

const (
	defaultPairingTTL = 24 * time.Hour

	pairingRequestKeyPrefix = "unlockd:pairing:request:"
	tickLockKeyPrefix       = "unlockd:scheduler:tick:"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	// AnswerKey, when set, must be 32 bytes; answer content is then
	// encrypted at rest.
	AnswerKey  []byte
	PairingTTL time.Duration

	Store     store.Store
	Ephemeral store.Ephemeral
	Notifier  notify.Notifier
	Now       func() time.Time
}

// App wires the assignment engine, disclosure engine, pairing workflow, and
// scheduler over durable and ephemeral storage.
type App struct {
	store      store.Store
	ephemeral  store.Ephemeral
	notifier   notify.Notifier
	now        func() time.Time
	pairingTTL time.Duration

	// Collapses concurrent active-question resolutions for one couple so a
	// scheduler tick and a user read cannot both decide to fresh-draw.
	assignGroup singleflight.Group
}

// New constructs the application with durable and ephemeral storage wired.
func New(cfg Config) (*App, error) {
	if cfg.PairingTTL == 0 {
		cfg.PairingTTL = defaultPairingTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var opts []store.GormStoreOption
		if len(cfg.AnswerKey) > 0 {
			cipher, err := store.NewAnswerCipher(cfg.AnswerKey)
			if err != nil {
				return nil, fmt.Errorf("init answer cipher: %w", err)
			}
			opts = append(opts, store.WithAnswerCipher(cipher))
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	ephemeral := cfg.Ephemeral
	if ephemeral == nil {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return nil, fmt.Errorf("redisAddr is required for the ephemeral store")
		}
		var err error
		ephemeral, err = store.NewRedisEphemeral(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("init redis ephemeral store: %w", err)
		}
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	return &App{
		store:      dataStore,
		ephemeral:  ephemeral,
		notifier:   notifier,
		now:        cfg.Now,
		pairingTTL: cfg.PairingTTL,
	}, nil
}

// CreateUser provisions a user with a fresh invite code. Account identity
// itself (credentials, tokens) lives in the external auth service; this is
// the hook it calls after registration.
func (a *App) CreateUser(nickname string) (domain.User, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return domain.User{}, ErrInvalidInput
	}
	now := a.now().UTC()
	user := domain.User{
		ID:        util.NewID(),
		Nickname:  nickname,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.saveUserWithFreshInviteCode(a.store, &user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// GetUser returns a user by id.
func (a *App) GetUser(userID string) (domain.User, error) {
	user, ok, err := a.store.GetUser(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

func (a *App) userAndCouple(userID string) (domain.User, domain.Couple, error) {
	user, err := a.GetUser(userID)
	if err != nil {
		return domain.User{}, domain.Couple{}, err
	}
	if !user.Coupled() {
		return domain.User{}, domain.Couple{}, ErrCoupleNotFound
	}
	couple, ok, err := a.store.GetCouple(user.CoupleID)
	if err != nil {
		return domain.User{}, domain.Couple{}, fmt.Errorf("fetch couple: %w", err)
	}
	if !ok {
		return domain.User{}, domain.Couple{}, ErrCoupleNotFound
	}
	return user, couple, nil
}

func (a *App) today() time.Time {
	return domain.DateOf(a.now())
}

func (a *App) notifyUser(userID, title, body string) {
	notify.Dispatch(a.notifier, userID, title, body)
}

// saveUserWithFreshInviteCode assigns a new invite code, retrying on the
// rare uniqueness collision.
func (a *App) saveUserWithFreshInviteCode(s store.Store, user *domain.User) error {
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		user.InviteCode = newInviteCode()
		user.UpdatedAt = a.now().UTC()
		err = s.SaveUser(*user)
		if !errors.Is(err, store.ErrDuplicate) {
			return err
		}
	}
	return err
}

// newInviteCode returns an 8-character uppercase code.
func newInviteCode() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func pairingRequestKey(targetUserID string) string {
	return pairingRequestKeyPrefix + targetUserID
}
