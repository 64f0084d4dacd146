package leave

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusCanceled = "cancelled"
)

const (
	TypePaid        = "paid"
	TypeUnpaid      = "unpaid"
	TypePaternity   = "paternity"
	TypeMaternity   = "maternity"
	TypeBereavement = "bereavement"
)

type Leave struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_employee_dates"`

	LeaveType   string    `gorm:"type:varchar(20);not null"`
	StartDate   time.Time `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	EndDate     time.Time `gorm:"type:date;not null;index:idx_leaves_employee_dates"`
	WorkingDays int       `gorm:"type:int;not null"`
	Reason      string    `gorm:"type:text"`

	Status string `gorm:"type:varchar(20);not null;default:'pending';index:idx_leaves_status"`

	// RequestedBy is the display label captured when the leave was filed,
	// so history stays readable after the employee record changes.
	RequestedBy string `gorm:"type:varchar(200)"`

	ApprovedBy *uuid.UUID `gorm:"type:uuid"`

	// CurrentManager is the manager responsible for acting on the record
	// now. Distinct from the employee's permanent reporting line; the
	// reassignment cascade rewrites it on pending records.
	CurrentManager uuid.UUID `gorm:"type:uuid;not null;index:idx_leaves_current_manager"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the record still blocks overlapping requests.
func (l *Leave) IsActive() bool {
	return l.Status == StatusPending || l.Status == StatusApproved
}
