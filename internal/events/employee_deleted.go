package events

import "time"

const EmployeeLifecycleTopic = "leavedesk.employee.lifecycle.v1"

type EmployeeDeletedEvent struct {
	EventType         string    `json:"event_type"`
	RequestID         string    `json:"request_id,omitempty"`
	EmployeeID        string    `json:"employee_id"`
	FallbackManagerID string    `json:"fallback_manager_id"`
	OccurredAt        time.Time `json:"occurred_at"`
}
