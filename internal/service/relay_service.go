package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wirechat/wirechat/internal/domain"
	"github.com/wirechat/wirechat/internal/hub"
	"github.com/wirechat/wirechat/internal/store"
	"github.com/wirechat/wirechat/pkg/log"
)

type relayService struct {
	// mu serializes every mutating operation end to end, across both
	// the store and the registry: two concurrent sends cannot
	// interleave their persistence writes, and a login mid-broadcast
	// sees a consistent roster.
	mu    sync.Mutex
	hub   *hub.Hub
	store store.MessageStore
}

func NewRelayService(h *hub.Hub, st store.MessageStore) RelayService {
	return &relayService{
		hub:   h,
		store: st,
	}
}

func (s *relayService) HandleLogin(ctx context.Context, c *hub.Client, userID string) error {
	if err := c.Session.Login(userID); err != nil {
		c.SendEnvelope(domain.NewErrorEnvelope(domain.ErrCodeBadRequest, "already logged in"))
		return fmt.Errorf("login on %s session: %w", c.Session.State(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if displaced := s.hub.Register(userID, c); displaced != nil {
		// Last login wins. Close the stale handle instead of leaving it
		// half-open against a registry entry it no longer owns.
		l := log.Ctx(ctx)
		l.Info().
			Str(log.FieldUserID, userID).
			Str(log.FieldClientID, displaced.ID).
			Msg("duplicate login, closing previous connection")
		displaced.Close()
	}

	if err := c.SendEnvelope(domain.NewLoginSuccessEnvelope(userID, s.store.All())); err != nil {
		return fmt.Errorf("send login success: %w", err)
	}

	s.hub.Broadcast(domain.NewUserListEnvelope(s.hub.Roster()))

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldUserID, userID).Int("history_len", s.store.Len()).Msg("user logged in")
	return nil
}

func (s *relayService) HandleChatMessage(ctx context.Context, c *hub.Client, content string) error {
	if !c.Session.IsActive() {
		c.SendEnvelope(domain.NewErrorEnvelope(domain.ErrCodeUnauthorized, "login required"))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := domain.Message{
		ID:        uuid.NewString(),
		UserID:    c.Session.UserID(),
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	if err := s.store.Append(msg); err != nil {
		// The message did not persist, so nobody may be told it exists.
		c.SendEnvelope(domain.NewErrorEnvelope(domain.ErrCodeStoreUnavailable, "message could not be saved"))
		return fmt.Errorf("append message: %w", err)
	}

	// Everyone gets the event, the sender included; there is no
	// distinguished local echo.
	s.hub.Broadcast(domain.NewMessageEnvelope(msg))

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldUserID, msg.UserID).
		Str(log.FieldMessageID, msg.ID).
		Msg("message stored and broadcast")
	return nil
}

func (s *relayService) HandleDeleteMessage(ctx context.Context, c *hub.Client, messageID string) error {
	if !c.Session.IsActive() {
		c.SendEnvelope(domain.NewErrorEnvelope(domain.ErrCodeUnauthorized, "login required"))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.store.Remove(messageID)
	if err != nil {
		c.SendEnvelope(domain.NewErrorEnvelope(domain.ErrCodeStoreUnavailable, "message could not be deleted"))
		return fmt.Errorf("remove message %s: %w", messageID, err)
	}
	if !ok {
		c.SendEnvelope(domain.NewErrorEnvelope(domain.ErrCodeNotFound, "message not found"))
		return nil
	}

	s.hub.Broadcast(domain.NewMessageDeletedEnvelope(messageID))

	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldUserID, c.Session.UserID()).
		Str(log.FieldMessageID, messageID).
		Msg("message deleted")
	return nil
}

// HandleDeviceInfo acknowledges the UI layer's device-info envelope.
// The relay has no native bridge, so the envelope is only logged.
func (s *relayService) HandleDeviceInfo(ctx context.Context, c *hub.Client) error {
	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldUserID, c.Session.UserID()).Msg("device info request")
	return nil
}

func (s *relayService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	wasActive := c.Session.IsActive()
	userID := c.Session.UserID()
	c.Session.Disconnect()

	if !wasActive {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A displaced client still held an active session; its mapping now
	// belongs to the replacement, so there is no roster change to
	// announce.
	if !s.hub.Unregister(userID, c) {
		return nil
	}
	s.hub.Broadcast(domain.NewUserListEnvelope(s.hub.Roster()))

	l := log.Ctx(ctx)
	l.Info().Str(log.FieldUserID, userID).Msg("user disconnected")
	return nil
}
