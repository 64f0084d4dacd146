package employee

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "HR"
)

// DefaultLeaveBalance is the paid-leave allowance granted to every new hire.
const DefaultLeaveBalance = 20

type Employee struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	FullName     string
	Email        string `gorm:"uniqueIndex:uq_employee_email"`
	PasswordHash string
	Role         string `gorm:"type:varchar(20);not null;default:'employee'"`
	Gender       string `gorm:"type:varchar(10)"`
	Department   string `gorm:"type:varchar(60)"`

	// ManagerID is the permanent reporting line; nil for the root manager.
	// Kept as an id rather than an embedded reference since the
	// employee->manager graph is cyclic.
	ManagerID *uuid.UUID `gorm:"type:uuid;index:idx_employees_manager"`

	LeaveBalance int `gorm:"not null;default:20"`
	UnpaidLeaves int `gorm:"not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
