package leave

type ApplyLeaveRequest struct {
	LeaveType string `json:"leave_type" binding:"required,oneof=paid unpaid paternity maternity bereavement"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

type EditLeaveRequest struct {
	LeaveType string `json:"leave_type" binding:"required,oneof=paid unpaid paternity maternity bereavement"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	Reason    string `json:"reason" binding:"required"`
}

type LeaveResponse struct {
	ID             string  `json:"id"`
	EmployeeID     string  `json:"employee_id"`
	LeaveType      string  `json:"leave_type"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	WorkingDays    int     `json:"working_days"`
	Reason         string  `json:"reason"`
	Status         string  `json:"status"`
	RequestedBy    string  `json:"requested_by"`
	ApprovedBy     *string `json:"approved_by,omitempty"`
	CurrentManager string  `json:"current_manager"`
	CreatedAt      string  `json:"created_at"`
}
