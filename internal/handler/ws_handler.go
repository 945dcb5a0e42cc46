package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wirechat/wirechat/internal/config"
	"github.com/wirechat/wirechat/internal/domain"
	"github.com/wirechat/wirechat/internal/hub"
	"github.com/wirechat/wirechat/internal/service"
	"github.com/wirechat/wirechat/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	service service.RelayService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(svc service.RelayService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		service: svc,
		wsCfg:   wsCfg,
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Str(log.FieldRemote, r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)

	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Str(log.FieldRemote, r.RemoteAddr).Msg("client connected")

	go client.WritePump()
	go client.ReadPump(h.handleEnvelope, h.handleDisconnect)
}

// handleEnvelope decodes one inbound envelope and dispatches it.
// Malformed or unknown envelopes are protocol errors: logged and
// dropped without touching connection state, so the connection stays
// usable for well-formed traffic.
func (h *WSHandler) handleEnvelope(client *hub.Client, message []byte) {
	ctx := context.Background()
	l := log.L()

	var base domain.BaseEnvelope
	if err := json.Unmarshal(message, &base); err != nil {
		l.Debug().Str(log.FieldClientID, client.ID).Err(err).Msg("malformed envelope dropped")
		return
	}

	switch base.Type {
	case domain.MsgTypeLogin:
		var env domain.LoginEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			l.Debug().Str(log.FieldClientID, client.ID).Err(err).Msg("malformed login envelope dropped")
			return
		}
		if err := h.service.HandleLogin(ctx, client, env.UserID); err != nil {
			l.Warn().Str(log.FieldClientID, client.ID).Err(err).Msg("login failed")
		}

	case domain.MsgTypeMessage:
		var env domain.ChatEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			l.Debug().Str(log.FieldClientID, client.ID).Err(err).Msg("malformed message envelope dropped")
			return
		}
		if err := h.service.HandleChatMessage(ctx, client, env.Content); err != nil {
			l.Error().Str(log.FieldClientID, client.ID).Err(err).Msg("chat message failed")
		}

	case domain.MsgTypeDeleteMessage:
		var env domain.DeleteEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			l.Debug().Str(log.FieldClientID, client.ID).Err(err).Msg("malformed delete envelope dropped")
			return
		}
		if err := h.service.HandleDeleteMessage(ctx, client, env.MessageID); err != nil {
			l.Error().Str(log.FieldClientID, client.ID).Err(err).Msg("delete message failed")
		}

	case domain.MsgTypeDeviceInfo:
		if err := h.service.HandleDeviceInfo(ctx, client); err != nil {
			l.Error().Str(log.FieldClientID, client.ID).Err(err).Msg("device info failed")
		}

	default:
		l.Debug().
			Str(log.FieldClientID, client.ID).
			Str(log.FieldEnvelopeType, base.Type).
			Msg("unknown envelope type dropped")
	}
}

func (h *WSHandler) handleDisconnect(client *hub.Client) {
	ctx := context.Background()
	if err := h.service.HandleDisconnect(ctx, client); err != nil {
		l := log.L()
		l.Error().Str(log.FieldClientID, client.ID).Err(err).Msg("disconnect cleanup failed")
	}

	l := log.L()
	l.Info().Str(log.FieldClientID, client.ID).Msg("client disconnected")
}

func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWebSocket)
}
