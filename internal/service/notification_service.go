package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
)

// NotificationChannel is a delivery target for ticket notifications.
type NotificationChannel string

const (
	ChannelEmail   NotificationChannel = "email"
	ChannelWebhook NotificationChannel = "webhook"
)

// notificationRoutes decides which channels hear about which events. Email is
// reserved for changes the ticket owner cares about.
var notificationRoutes = map[events.EventType][]NotificationChannel{
	events.EventTicketCreated:       {ChannelEmail, ChannelWebhook},
	events.EventTicketStatusChanged: {ChannelEmail, ChannelWebhook},
	events.EventTicketUpdated:       {ChannelWebhook},
	events.EventTicketDeleted:       {ChannelWebhook},
}

// NotificationService turns ticket events into notifications. Delivery is
// stubbed: messages are logged for every configured channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every routed event type.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType := range notificationRoutes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	summary := describeEvent(event)
	n.logger.Info("ticket event",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.UserID),
		zap.String("summary", summary))

	for _, channel := range n.channelsFor(event.Type) {
		n.deliver(ctx, channel, event, summary)
	}
	return nil
}

// channelsFor returns the routed channels that have a configured target.
func (n *NotificationService) channelsFor(eventType events.EventType) []NotificationChannel {
	var out []NotificationChannel
	for _, channel := range notificationRoutes[eventType] {
		switch channel {
		case ChannelEmail:
			if strings.TrimSpace(n.cfg.EmailFrom) == "" {
				continue
			}
		case ChannelWebhook:
			if strings.TrimSpace(n.cfg.WebhookURL) == "" {
				continue
			}
		}
		out = append(out, channel)
	}
	return out
}

func (n *NotificationService) deliver(_ context.Context, channel NotificationChannel, event events.Event, summary string) {
	fields := []zap.Field{
		zap.String("channel", string(channel)),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("summary", summary),
	}
	switch channel {
	case ChannelEmail:
		fields = append(fields, zap.String("from", n.cfg.EmailFrom))
	case ChannelWebhook:
		fields = append(fields, zap.String("url", n.cfg.WebhookURL))
	}
	n.logger.Debug("notification queued", fields...)
}

func describeEvent(event events.Event) string {
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		return fmt.Sprintf("ticket %q opened with %s priority", payload.Title, payload.Priority)
	case events.TicketStatusChangedPayload:
		return fmt.Sprintf("status %s -> %s via %s", payload.OldStatus, payload.NewStatus, payload.Source)
	case events.TicketUpdatedPayload:
		return "changed " + strings.Join(payload.Fields, ", ")
	case events.TicketDeletedPayload:
		return fmt.Sprintf("ticket %q deleted", payload.Title)
	}
	return string(event.Type)
}
