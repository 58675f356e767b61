package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/service"
)

// StartEventWorkers subscribes the notification handlers and, when present, the
// Redis fanout to the dispatcher.
func StartEventWorkers(dispatcher events.Dispatcher, notifications *service.NotificationService, fanout *events.RedisFanout, logger *zap.Logger) {
	if dispatcher == nil {
		return
	}
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if fanout != nil {
		events.SubscribeAll(dispatcher, fanout.Handle)
		logger.Info("redis event fanout enabled")
	}
}
