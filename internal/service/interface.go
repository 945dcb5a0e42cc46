package service

import (
	"context"

	"github.com/wirechat/wirechat/internal/hub"
)

// RelayService dispatches decoded inbound envelopes against the message
// store, the session registry and the broadcast engine. Every method
// handles its own failures: errors returned here are for logging only
// and never tear down other connections.
type RelayService interface {
	HandleLogin(ctx context.Context, client *hub.Client, userID string) error
	HandleChatMessage(ctx context.Context, client *hub.Client, content string) error
	HandleDeleteMessage(ctx context.Context, client *hub.Client, messageID string) error
	HandleDeviceInfo(ctx context.Context, client *hub.Client) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
}
