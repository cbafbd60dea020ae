package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"unlockd/internal/util"
	"unlockd/pkg/domain"
	"unlockd/pkg/store"
)

// CoupleInfo is the caller's view of their own pairing state.
type CoupleInfo struct {
	Connected        bool      `json:"connected"`
	InviteCode       string    `json:"inviteCode,omitempty"`
	PartnerNickname  string    `json:"partnerNickname,omitempty"`
	StartDate        time.Time `json:"startDate,omitzero"`
	NotificationTime string    `json:"notificationTime,omitempty"`
	IsSubscribed     bool      `json:"isSubscribed,omitempty"`
}

// ReceivedRequest is a pending inbound pairing request.
type ReceivedRequest struct {
	RequesterID       string `json:"requesterId"`
	RequesterNickname string `json:"requesterNickname"`
}

// GetCoupleInfo reports the caller's pairing state. A single user gets their
// invite code; a coupled user gets the relationship details instead.
func (a *App) GetCoupleInfo(userID string) (CoupleInfo, error) {
	user, err := a.GetUser(userID)
	if err != nil {
		return CoupleInfo{}, err
	}
	if !user.Coupled() {
		if user.InviteCode == "" {
			// older accounts may predate invite codes
			if err := a.saveUserWithFreshInviteCode(a.store, &user); err != nil {
				return CoupleInfo{}, fmt.Errorf("assign invite code: %w", err)
			}
		}
		return CoupleInfo{InviteCode: user.InviteCode}, nil
	}
	couple, ok, err := a.store.GetCouple(user.CoupleID)
	if err != nil {
		return CoupleInfo{}, fmt.Errorf("fetch couple: %w", err)
	}
	if !ok {
		return CoupleInfo{}, ErrCoupleNotFound
	}
	partner, err := a.GetUser(couple.PartnerOf(userID))
	if err != nil {
		return CoupleInfo{}, err
	}
	return CoupleInfo{
		Connected:        true,
		PartnerNickname:  partner.Nickname,
		StartDate:        couple.StartDate,
		NotificationTime: couple.NotificationTime,
		IsSubscribed:     couple.IsSubscribed,
	}, nil
}

// RequestConnection asks the owner of inviteCode to pair with the caller.
// At most one pending request per target; the request expires on its own.
func (a *App) RequestConnection(ctx context.Context, userID, inviteCode string) error {
	user, err := a.GetUser(userID)
	if err != nil {
		return err
	}
	if user.Coupled() {
		return ErrAlreadyConnected
	}
	inviteCode = strings.ToUpper(strings.TrimSpace(inviteCode))
	if inviteCode == "" {
		return ErrInvalidInviteCode
	}
	target, ok, err := a.store.GetUserByInviteCode(inviteCode)
	if err != nil {
		return fmt.Errorf("look up invite code: %w", err)
	}
	if !ok {
		return ErrInvalidInviteCode
	}
	if target.ID == user.ID {
		return ErrCannotConnectSelf
	}
	if target.Coupled() {
		return ErrPartnerAlreadyConnected
	}

	// SetIfAbsent is the authority on "pending request exists"; two
	// simultaneous requesters get exactly one winner.
	created, err := a.ephemeral.SetIfAbsent(ctx, pairingRequestKey(target.ID), user.ID, a.pairingTTL)
	if err != nil {
		return fmt.Errorf("store pairing request: %w", err)
	}
	if !created {
		return ErrPendingRequestExists
	}
	a.notifyUser(target.ID, "Pairing request",
		fmt.Sprintf("%s wants to connect with you.", user.Nickname))
	return nil
}

// GetReceivedRequest returns the caller's pending inbound request, or nil
// when there is none. A request whose sender has vanished or paired up in
// the meantime is discarded.
func (a *App) GetReceivedRequest(ctx context.Context, userID string) (*ReceivedRequest, error) {
	if _, err := a.GetUser(userID); err != nil {
		return nil, err
	}
	requesterID, ok, err := a.ephemeral.Get(ctx, pairingRequestKey(userID))
	if err != nil {
		return nil, fmt.Errorf("fetch pairing request: %w", err)
	}
	if !ok {
		return nil, nil
	}
	requester, found, err := a.store.GetUser(requesterID)
	if err != nil {
		return nil, fmt.Errorf("fetch requester: %w", err)
	}
	if !found || requester.Coupled() {
		_ = a.ephemeral.Delete(ctx, pairingRequestKey(userID))
		return nil, nil
	}
	return &ReceivedRequest{RequesterID: requester.ID, RequesterNickname: requester.Nickname}, nil
}

// AcceptConnection pairs the caller with their pending requester. The couple
// starts today with the default notification time.
func (a *App) AcceptConnection(ctx context.Context, userID string) error {
	user, err := a.GetUser(userID)
	if err != nil {
		return err
	}
	if user.Coupled() {
		return ErrAlreadyConnected
	}
	requesterID, ok, err := a.ephemeral.Get(ctx, pairingRequestKey(userID))
	if err != nil {
		return fmt.Errorf("fetch pairing request: %w", err)
	}
	if !ok {
		return ErrRequestNotFound
	}
	requester, found, err := a.store.GetUser(requesterID)
	if err != nil {
		return fmt.Errorf("fetch requester: %w", err)
	}
	if !found {
		_ = a.ephemeral.Delete(ctx, pairingRequestKey(userID))
		return ErrRequestNotFound
	}
	// the requester may have paired with someone else while this request
	// sat in the inbox
	if requester.Coupled() {
		_ = a.ephemeral.Delete(ctx, pairingRequestKey(userID))
		return ErrPartnerAlreadyConnected
	}

	now := a.now().UTC()
	couple := domain.Couple{
		ID:               util.NewID(),
		UserAID:          requester.ID,
		UserBID:          user.ID,
		StartDate:        a.today(),
		NotificationTime: domain.DefaultNotificationTime,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = a.store.Transact(func(tx store.Store) error {
		if err := tx.SaveCouple(couple); err != nil {
			return fmt.Errorf("save couple: %w", err)
		}
		for _, member := range []*domain.User{&requester, &user} {
			member.CoupleID = couple.ID
			member.UpdatedAt = now
			if err := tx.SaveUser(*member); err != nil {
				return fmt.Errorf("link user %s: %w", member.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	_ = a.ephemeral.Delete(ctx, pairingRequestKey(userID))
	a.notifyUser(requester.ID, "Pairing accepted",
		fmt.Sprintf("%s accepted your request. Your first question arrives tonight!", user.Nickname))
	return nil
}

// RejectConnection discards the caller's pending inbound request and tells
// the requester.
func (a *App) RejectConnection(ctx context.Context, userID string) error {
	user, err := a.GetUser(userID)
	if err != nil {
		return err
	}
	requesterID, ok, err := a.ephemeral.Get(ctx, pairingRequestKey(userID))
	if err != nil {
		return fmt.Errorf("fetch pairing request: %w", err)
	}
	if !ok {
		return ErrRequestNotFound
	}
	if err := a.ephemeral.Delete(ctx, pairingRequestKey(userID)); err != nil {
		return fmt.Errorf("delete pairing request: %w", err)
	}
	a.notifyUser(requesterID, "Pairing declined",
		fmt.Sprintf("%s declined your pairing request.", user.Nickname))
	return nil
}

// Breakup dissolves the caller's couple. All shared history (assignments,
// both members' answers and reveal grants) is destroyed and both members get
// fresh invite codes so stale codes cannot re-pair them.
func (a *App) Breakup(userID string) error {
	user, couple, err := a.userAndCouple(userID)
	if err != nil {
		return err
	}
	partner, err := a.GetUser(couple.PartnerOf(userID))
	if err != nil {
		return err
	}

	// Codes are generated outside the transaction; a failed statement aborts
	// the whole Postgres transaction, so a collision retries the full wipe
	// with fresh codes rather than re-issuing statements inside it.
	for attempt := 0; attempt < 3; attempt++ {
		err = a.store.Transact(func(tx store.Store) error {
			for _, member := range []domain.User{user, partner} {
				if err := tx.DeleteRevealGrantsByUser(member.ID); err != nil {
					return fmt.Errorf("delete reveal grants: %w", err)
				}
				if err := tx.DeleteAnswersByUser(member.ID); err != nil {
					return fmt.Errorf("delete answers: %w", err)
				}
			}
			if err := tx.DeleteAssignmentsByCouple(couple.ID); err != nil {
				return fmt.Errorf("delete assignments: %w", err)
			}
			for _, member := range []*domain.User{&user, &partner} {
				member.CoupleID = ""
				member.InviteCode = newInviteCode()
				member.UpdatedAt = a.now().UTC()
				if err := tx.SaveUser(*member); err != nil {
					return fmt.Errorf("reset user %s: %w", member.ID, err)
				}
			}
			if err := tx.DeleteCouple(couple.ID); err != nil {
				return fmt.Errorf("delete couple: %w", err)
			}
			return nil
		})
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return err
	}
	a.notifyUser(partner.ID, "Connection ended",
		fmt.Sprintf("%s has ended your connection.", user.Nickname))
	return nil
}

// UpdateNotificationTime changes the couple's daily reminder minute.
func (a *App) UpdateNotificationTime(userID, hhmm string) error {
	if _, err := time.Parse("15:04", hhmm); err != nil {
		return ErrInvalidInput
	}
	_, couple, err := a.userAndCouple(userID)
	if err != nil {
		return err
	}
	couple.NotificationTime = hhmm
	couple.UpdatedAt = a.now().UTC()
	if err := a.store.SaveCouple(couple); err != nil {
		return fmt.Errorf("save couple: %w", err)
	}
	return nil
}
