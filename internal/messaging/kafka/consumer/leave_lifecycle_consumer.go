package consumer

import (
	"context"
	"encoding/json"

	"go-leavedesk/internal/bootstrap"
	"go-leavedesk/internal/events"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConsumeLeaveLifecycle turns leave lifecycle events into audit trail
// entries. Delivery is at-least-once, so a replayed event just writes a
// duplicate audit line.
func ConsumeLeaveLifecycle(
	ctx context.Context,
	reader *kafkago.Reader,
	audit bootstrap.AuditLogger,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.leave_lifecycle")
	log.Info("leave lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("leave lifecycle consumer stopped")
				return
			}
			log.Error("fetch leave lifecycle message failed", zap.Error(err))
			continue
		}

		var event events.LeaveStatusChangedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode leave lifecycle event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		audit.Log(ctx, bootstrap.AuditLog{
			Action:  event.EventType,
			Message: "Leave request status changed",
			Meta: map[string]any{
				"request_id":  event.RequestID,
				"leave_id":    event.LeaveID,
				"employee_id": event.EmployeeID,
				"status":      event.Status,
				"actor_id":    event.ActorID,
				"occurred_at": event.OccurredAt,
			},
		})

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit leave lifecycle message failed", zap.Error(err))
			continue
		}

		log.Info("leave lifecycle event audited",
			zap.String("leave_id", event.LeaveID),
			zap.String("event_type", event.EventType),
		)
	}
}
