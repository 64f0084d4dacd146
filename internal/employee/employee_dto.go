package employee

type CreateEmployeeRequest struct {
	FullName   string `json:"full_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Role       string `json:"role" binding:"required,oneof=employee manager HR"`
	Gender     string `json:"gender" binding:"omitempty,oneof=male female"`
	Department string `json:"department"`
	ManagerID  string `json:"manager_id"`
}

type UpdateEmployeeRequest struct {
	FullName   string `json:"full_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Role       string `json:"role" binding:"required,oneof=employee manager HR"`
	Gender     string `json:"gender" binding:"omitempty,oneof=male female"`
	Department string `json:"department"`
	ManagerID  string `json:"manager_id"`
}

type ReassignManagerRequest struct {
	ManagerID string `json:"manager_id" binding:"required,uuid"`
}

type EmployeeResponse struct {
	ID           string  `json:"id"`
	FullName     string  `json:"full_name"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	Gender       string  `json:"gender,omitempty"`
	Department   string  `json:"department,omitempty"`
	ManagerID    *string `json:"manager_id,omitempty"`
	LeaveBalance int     `json:"leave_balance"`
	UnpaidLeaves int     `json:"unpaid_leaves"`
}

type EmployeeOption struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}
