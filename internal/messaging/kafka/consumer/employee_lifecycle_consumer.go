package consumer

import (
	"context"
	"encoding/json"

	"go-leavedesk/internal/bootstrap"
	"go-leavedesk/internal/events"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ConsumeEmployeeLifecycle audits employee deletions along with the
// reassignment fallout recorded on the event.
func ConsumeEmployeeLifecycle(
	ctx context.Context,
	reader *kafkago.Reader,
	audit bootstrap.AuditLogger,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.employee_lifecycle")
	log.Info("employee lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("employee lifecycle consumer stopped")
				return
			}
			log.Error("fetch employee lifecycle message failed", zap.Error(err))
			continue
		}

		var event events.EmployeeDeletedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode employee lifecycle event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		audit.Log(ctx, bootstrap.AuditLog{
			Action:  "employee_deleted",
			Message: "Employee removed and reports reassigned",
			Meta: map[string]any{
				"request_id":          event.RequestID,
				"employee_id":         event.EmployeeID,
				"fallback_manager_id": event.FallbackManagerID,
				"occurred_at":         event.OccurredAt,
			},
		})

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit employee lifecycle message failed", zap.Error(err))
			continue
		}

		log.Info("employee lifecycle event audited",
			zap.String("employee_id", event.EmployeeID),
		)
	}
}
