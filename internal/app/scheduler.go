package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"unlockd/pkg/domain"
)

// tickLockTTL is shorter than the minute between ticks so a crashed holder
// cannot block the next tick.
const tickLockTTL = 59 * time.Second

// StartScheduler runs the minute ticker until ctx is cancelled. Every tick
// nudges the couples whose notification time matches the current minute.
func (a *App) StartScheduler(ctx context.Context) {
	go func() {
		for {
			now := a.now()
			next := now.Truncate(time.Minute).Add(time.Minute)
			select {
			case <-ctx.Done():
				return
			case <-time.After(next.Sub(now)):
			}
			if err := a.RunTick(ctx, a.now()); err != nil {
				slog.Error("scheduler tick failed", "err", err)
			}
		}
	}()
}

// RunTick processes one scheduler minute. The tick label rounds the wall
// clock to the nearest minute boundary so a tick firing at 21:59:59.9 still
// serves the 22:00 couples. A Redis lock keyed by the tick label makes the
// tick exclusive across replicas.
func (a *App) RunTick(ctx context.Context, now time.Time) error {
	tick := now.Add(time.Second).Truncate(time.Minute)
	lockKey := tickLockKeyPrefix + tick.Format("200601021504")
	acquired, err := a.ephemeral.SetIfAbsent(ctx, lockKey, "1", tickLockTTL)
	if err != nil {
		return fmt.Errorf("acquire tick lock: %w", err)
	}
	if !acquired {
		return nil
	}

	couples, err := a.store.ListCouplesByNotificationTime(tick.Format("15:04"))
	if err != nil {
		return fmt.Errorf("list couples for tick: %w", err)
	}
	for _, couple := range couples {
		if err := a.notifyCouple(couple); err != nil {
			// one couple's failure never blocks the rest of the tick
			slog.Error("couple notification failed", "couple_id", couple.ID, "err", err)
		}
	}
	return nil
}

// notifyCouple resolves the couple's active question and sends the message
// each member actually needs:
//
//   - both answered: nothing to say
//   - question fresh today and neither answered: announce it to both
//   - otherwise: remind each unanswered member, mentioning whether the
//     partner is already waiting
func (a *App) notifyCouple(couple domain.Couple) error {
	active, err := a.resolveActiveQuestion(couple.ID)
	if err != nil {
		return err
	}

	members := []string{couple.UserAID, couple.UserBID}
	answered := make(map[string]bool, 2)
	for _, memberID := range members {
		has, err := a.store.HasAnswer(memberID, active.Question.ID)
		if err != nil {
			return fmt.Errorf("check answer: %w", err)
		}
		answered[memberID] = has
	}

	if answered[couple.UserAID] && answered[couple.UserBID] {
		return nil
	}

	if active.AssignedToday && !answered[couple.UserAID] && !answered[couple.UserBID] {
		for _, memberID := range members {
			a.notifyUser(memberID, "Today's question has arrived", active.Question.Content)
		}
		return nil
	}

	for _, memberID := range members {
		if answered[memberID] {
			continue
		}
		body := "You haven't answered today's question yet."
		if answered[couple.PartnerOf(memberID)] {
			body = "Your partner is waiting for your answer!"
		}
		a.notifyUser(memberID, "Today's question", body)
	}
	return nil
}
