package leave

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-leavedesk/internal/calendar"
	"go-leavedesk/internal/employee"
	"go-leavedesk/internal/events"
	"go-leavedesk/internal/ledger"
	leaveerrors "go-leavedesk/internal/leave/errors"
	"go-leavedesk/internal/messaging/kafka"
	"go-leavedesk/internal/shared/contextutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:generate mockgen -source=leave_service.go -destination=mock/leave_service_mock.go -package=mock
type Service interface {
	Apply(ctx context.Context, employeeID string, req ApplyLeaveRequest) (LeaveResponse, error)
	Edit(ctx context.Context, id, employeeID string, req EditLeaveRequest) (LeaveResponse, error)
	Approve(ctx context.Context, id, managerID string) (LeaveResponse, error)
	Reject(ctx context.Context, id, managerID string) (LeaveResponse, error)
	Cancel(ctx context.Context, id, employeeID string) (LeaveResponse, error)
	GetAll(ctx context.Context) ([]LeaveResponse, error)
	GetByID(ctx context.Context, id string) (LeaveResponse, error)
	GetByEmployee(ctx context.Context, employeeID string) ([]LeaveResponse, error)
	GetPendingForManager(ctx context.Context, managerID string) ([]LeaveResponse, error)
}

type service struct {
	db               *sql.DB
	repo             Repository
	employees        employee.Repository
	ledger           *ledger.Ledger
	holidays         calendar.HolidaySet
	outbox           kafka.OutboxRepository
	defaultManagerID string
	logger           *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	employees employee.Repository,
	ldg *ledger.Ledger,
	holidays calendar.HolidaySet,
	defaultManagerID string,
	logger ...*zap.Logger,
) Service {
	return NewServiceWithOutbox(db, repo, employees, ldg, holidays, nil, defaultManagerID, logger...)
}

func NewServiceWithOutbox(
	db *sql.DB,
	repo Repository,
	employees employee.Repository,
	ldg *ledger.Ledger,
	holidays calendar.HolidaySet,
	outboxRepo kafka.OutboxRepository,
	defaultManagerID string,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("leave.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leave.service")
	}
	return &service{
		db:               db,
		repo:             repo,
		employees:        employees,
		ledger:           ldg,
		holidays:         holidays,
		outbox:           outboxRepo,
		defaultManagerID: defaultManagerID,
		logger:           l,
	}
}

func (s *service) Apply(ctx context.Context, employeeID string, req ApplyLeaveRequest) (LeaveResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("apply leave requested",
		zap.String("request_id", rid),
		zap.String("employee_id", employeeID),
		zap.String("leave_type", req.LeaveType),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)

	startDate, endDate, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		s.logger.Warn("apply leave validation failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	days, err := calendar.WorkingDays(startDate, endDate, s.holidays)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidDateRange
	}

	release := s.ledger.Acquire(employeeID)
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("apply leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	emptx := s.employees.WithTx(tx)

	empl, err := emptx.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrEmployeeNotFound
		}
		return LeaveResponse{}, err
	}

	overlap, err := qtx.HasOverlappingPeriod(ctx, employeeID, startDate, endDate, nil)
	if err != nil {
		s.logger.Error("apply leave overlap check failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if overlap {
		s.logger.Warn("apply leave overlap detected",
			zap.String("employee_id", employeeID),
			zap.String("start_date", req.StartDate),
			zap.String("end_date", req.EndDate),
		)
		return LeaveResponse{}, leaveerrors.ErrLeaveOverlap
	}

	paid := req.LeaveType == TypePaid
	if paid && days > empl.LeaveBalance {
		s.logger.Warn("apply leave insufficient balance",
			zap.String("employee_id", employeeID),
			zap.Int("requested_days", days),
			zap.Int("balance", empl.LeaveBalance),
		)
		return LeaveResponse{}, leaveerrors.ErrInsufficientBalance
	}

	currentManager, err := s.currentManagerFor(empl)
	if err != nil {
		return LeaveResponse{}, err
	}

	l := &Leave{
		ID:             uuid.New(),
		EmployeeID:     empl.ID,
		LeaveType:      req.LeaveType,
		StartDate:      startDate,
		EndDate:        endDate,
		WorkingDays:    days,
		Reason:         req.Reason,
		Status:         StatusPending,
		RequestedBy:    fmt.Sprintf("%s (%s)", empl.FullName, empl.Email),
		CurrentManager: currentManager,
	}

	if err := qtx.Create(ctx, l); err != nil {
		s.logger.Error("apply leave persist failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if _, err := s.ledger.ApplyDelta(ctx, emptx, employeeID, ledger.RequestDelta(paid, days)); err != nil {
		s.logger.Error("apply leave ledger delta failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.enqueueStatusEvent(ctx, tx, l, employeeID, "leave_requested"); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("apply leave commit failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	s.logger.Info("apply leave success",
		zap.String("request_id", rid),
		zap.String("leave_id", l.ID.String()),
		zap.String("employee_id", employeeID),
		zap.Int("working_days", days),
	)

	return mapToResponse(*l), nil
}

func (s *service) Edit(ctx context.Context, id, employeeID string, req EditLeaveRequest) (LeaveResponse, error) {
	s.logger.Debug("edit leave requested",
		zap.String("leave_id", id),
		zap.String("employee_id", employeeID),
	)

	startDate, endDate, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return LeaveResponse{}, err
	}

	release := s.ledger.Acquire(employeeID)
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("edit leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	emptx := s.employees.WithTx(tx)

	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}
	if l.EmployeeID.String() != employeeID {
		return LeaveResponse{}, leaveerrors.ErrNotLeaveOwner
	}
	if err := s.checkModifiable(l); err != nil {
		return LeaveResponse{}, err
	}

	sameRange := l.StartDate.Equal(startDate) && l.EndDate.Equal(endDate)

	// Reason-only edit is a pure text update: no overlap scan, no ledger
	// recomputation.
	if sameRange && l.LeaveType == req.LeaveType {
		l.Reason = req.Reason
		if err := qtx.Update(ctx, l); err != nil {
			s.logger.Error("edit leave persist failed", zap.String("leave_id", id), zap.Error(err))
			return LeaveResponse{}, err
		}
		if err := tx.Commit(); err != nil {
			return LeaveResponse{}, err
		}
		s.logger.Info("edit leave reason updated", zap.String("leave_id", id))
		return mapToResponse(*l), nil
	}

	// An unchanged range never conflicts with itself; only scan the
	// store when the dates actually moved.
	if !sameRange {
		overlap, err := qtx.HasOverlappingPeriod(ctx, employeeID, startDate, endDate, &id)
		if err != nil {
			s.logger.Error("edit leave overlap check failed", zap.Error(err))
			return LeaveResponse{}, err
		}
		if overlap {
			return LeaveResponse{}, leaveerrors.ErrLeaveOverlap
		}
	}

	newDays, err := calendar.WorkingDays(startDate, endDate, s.holidays)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrInvalidDateRange
	}

	empl, err := emptx.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LeaveResponse{}, leaveerrors.ErrEmployeeNotFound
		}
		return LeaveResponse{}, err
	}

	oldPaid := l.LeaveType == TypePaid
	newPaid := req.LeaveType == TypePaid

	// Insufficiency is checked against the balance as it would stand
	// after reversing the original debit, before anything is written.
	available := empl.LeaveBalance
	if oldPaid {
		available += l.WorkingDays
	}
	if newPaid && newDays > available {
		s.logger.Warn("edit leave insufficient balance",
			zap.String("leave_id", id),
			zap.Int("requested_days", newDays),
			zap.Int("available", available),
		)
		return LeaveResponse{}, leaveerrors.ErrInsufficientBalance
	}

	oldDelta := ledger.RequestDelta(oldPaid, l.WorkingDays)
	if _, err := s.ledger.ApplyDelta(ctx, emptx, employeeID, oldDelta.Reversed()); err != nil {
		s.logger.Error("edit leave reverse delta failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	if _, err := s.ledger.ApplyDelta(ctx, emptx, employeeID, ledger.RequestDelta(newPaid, newDays)); err != nil {
		s.logger.Error("edit leave apply delta failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	l.LeaveType = req.LeaveType
	l.StartDate = startDate
	l.EndDate = endDate
	l.WorkingDays = newDays
	l.Reason = req.Reason

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("edit leave persist failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.enqueueStatusEvent(ctx, tx, l, employeeID, "leave_edited"); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("edit leave commit failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}
	s.logger.Info("edit leave success",
		zap.String("leave_id", id),
		zap.Int("working_days", newDays),
	)

	return mapToResponse(*l), nil
}

func (s *service) Approve(ctx context.Context, id, managerID string) (LeaveResponse, error) {
	return s.decide(ctx, id, managerID, StatusApproved)
}

func (s *service) Reject(ctx context.Context, id, managerID string) (LeaveResponse, error) {
	return s.decide(ctx, id, managerID, StatusRejected)
}

// decide handles the two manager verdicts on a pending record. Approval
// leaves the ledger alone (the balance moved at apply time); rejection
// reverses the original delta.
func (s *service) decide(ctx context.Context, id, managerID, targetStatus string) (LeaveResponse, error) {
	s.logger.Debug("leave decision requested",
		zap.String("leave_id", id),
		zap.String("manager_id", managerID),
		zap.String("target_status", targetStatus),
	)

	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}

	release := s.ledger.Acquire(l.EmployeeID.String())
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("leave decision begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	emptx := s.employees.WithTx(tx)

	// Re-read inside the transaction so the status check is not stale.
	l, err = qtx.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}

	if !isAllowedStatusTransition(l.Status, targetStatus) {
		s.logger.Warn("leave decision invalid transition",
			zap.String("leave_id", id),
			zap.String("from_status", l.Status),
			zap.String("to_status", targetStatus),
		)
		return LeaveResponse{}, leaveerrors.ErrInvalidStatusTransition
	}
	if l.CurrentManager.String() != managerID {
		s.logger.Warn("leave decision by non-current manager",
			zap.String("leave_id", id),
			zap.String("actor_id", managerID),
			zap.String("current_manager", l.CurrentManager.String()),
		)
		return LeaveResponse{}, leaveerrors.ErrNotCurrentManager
	}

	approver, err := uuid.Parse(managerID)
	if err != nil {
		return LeaveResponse{}, leaveerrors.ErrNotCurrentManager
	}

	l.Status = targetStatus
	l.ApprovedBy = &approver

	if targetStatus == StatusRejected {
		paid := l.LeaveType == TypePaid
		reversal := ledger.RequestDelta(paid, l.WorkingDays).Reversed()
		if _, err := s.ledger.ApplyDelta(ctx, emptx, l.EmployeeID.String(), reversal); err != nil {
			s.logger.Error("leave rejection ledger reversal failed", zap.Error(err))
			return LeaveResponse{}, err
		}
	}

	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("leave decision persist failed",
			zap.String("leave_id", id),
			zap.String("target_status", targetStatus),
			zap.Error(err),
		)
		return LeaveResponse{}, err
	}

	if err := s.enqueueStatusEvent(ctx, tx, l, managerID, "leave_"+targetStatus); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("leave decision commit failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}
	s.logger.Info("leave decision success",
		zap.String("leave_id", id),
		zap.String("status", targetStatus),
	)
	return mapToResponse(*l), nil
}

func (s *service) Cancel(ctx context.Context, id, employeeID string) (LeaveResponse, error) {
	s.logger.Debug("cancel leave requested",
		zap.String("leave_id", id),
		zap.String("employee_id", employeeID),
	)

	release := s.ledger.Acquire(employeeID)
	defer release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("cancel leave begin tx failed", zap.Error(err))
		return LeaveResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	emptx := s.employees.WithTx(tx)

	l, err := qtx.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}
	if l.EmployeeID.String() != employeeID {
		return LeaveResponse{}, leaveerrors.ErrNotLeaveOwner
	}
	if err := s.checkModifiable(l); err != nil {
		return LeaveResponse{}, err
	}

	paid := l.LeaveType == TypePaid
	reversal := ledger.RequestDelta(paid, l.WorkingDays).Reversed()
	if _, err := s.ledger.ApplyDelta(ctx, emptx, employeeID, reversal); err != nil {
		s.logger.Error("cancel leave ledger reversal failed", zap.Error(err))
		return LeaveResponse{}, err
	}

	l.Status = StatusCanceled
	if err := qtx.Update(ctx, l); err != nil {
		s.logger.Error("cancel leave persist failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}

	if err := s.enqueueStatusEvent(ctx, tx, l, employeeID, "leave_cancelled"); err != nil {
		return LeaveResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("cancel leave commit failed", zap.String("leave_id", id), zap.Error(err))
		return LeaveResponse{}, err
	}
	s.logger.Info("cancel leave success", zap.String("leave_id", id))

	return mapToResponse(*l), nil
}

func (s *service) GetAll(ctx context.Context) ([]LeaveResponse, error) {
	leaves, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) GetByID(ctx context.Context, id string) (LeaveResponse, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return LeaveResponse{}, mapRepositoryError(err)
	}
	return mapToResponse(*l), nil
}

func (s *service) GetByEmployee(ctx context.Context, employeeID string) ([]LeaveResponse, error) {
	leaves, err := s.repo.FindByEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

func (s *service) GetPendingForManager(ctx context.Context, managerID string) ([]LeaveResponse, error) {
	leaves, err := s.repo.FindPendingByManager(ctx, managerID)
	if err != nil {
		return nil, err
	}
	return mapToListResponse(leaves), nil
}

// checkModifiable enforces the shared cancel/edit eligibility rule:
// pending is always modifiable, approved only until the leave begins.
func (s *service) checkModifiable(l *Leave) error {
	switch l.Status {
	case StatusPending:
		return nil
	case StatusApproved:
		today := time.Now().UTC().Truncate(24 * time.Hour)
		if l.StartDate.Before(today) {
			return leaveerrors.ErrLeaveAlreadyStarted
		}
		return nil
	default:
		return leaveerrors.ErrInvalidStatusTransition
	}
}

func isAllowedStatusTransition(currentStatus, targetStatus string) bool {
	switch currentStatus {
	case StatusPending:
		return targetStatus == StatusApproved ||
			targetStatus == StatusRejected ||
			targetStatus == StatusCanceled
	case StatusApproved:
		return targetStatus == StatusCanceled
	default:
		return false
	}
}

func (s *service) currentManagerFor(empl *employee.Employee) (uuid.UUID, error) {
	if empl.ManagerID != nil {
		return *empl.ManagerID, nil
	}
	// Root manager has no reporting line; requests land on the
	// configured fallback.
	fallback, err := uuid.Parse(s.defaultManagerID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid default manager id %q: %w", s.defaultManagerID, err)
	}
	return fallback, nil
}

func (s *service) enqueueStatusEvent(ctx context.Context, tx *sql.Tx, l *Leave, actorID, eventType string) error {
	if s.outbox == nil {
		return nil
	}

	rid := contextutil.GetRequestID(ctx)
	event := events.LeaveStatusChangedEvent{
		EventType:  eventType,
		RequestID:  rid,
		LeaveID:    l.ID.String(),
		EmployeeID: l.EmployeeID.String(),
		Status:     l.Status,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal event failed", zap.String("request_id", rid), zap.Error(err))
		return err
	}

	outboxRepo := s.outbox.WithTx(tx)
	if err := outboxRepo.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     rid,
		AggregateType: "leave",
		AggregateID:   l.ID.String(),
		EventType:     eventType,
		Topic:         events.LeaveLifecycleTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}); err != nil {
		s.logger.Error("leave outbox persist failed",
			zap.String("leave_id", l.ID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	startDate, err := parseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate, err := parseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if startDate.After(endDate) {
		return time.Time{}, time.Time{}, leaveerrors.ErrInvalidDateRange
	}
	return startDate, endDate, nil
}

func parseDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, leaveerrors.ErrInvalidDateFormat
	}
	return t, nil
}

func mapRepositoryError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return leaveerrors.ErrLeaveNotFound
	}
	return err
}

func mapToResponse(l Leave) LeaveResponse {
	resp := LeaveResponse{
		ID:             l.ID.String(),
		EmployeeID:     l.EmployeeID.String(),
		LeaveType:      l.LeaveType,
		StartDate:      l.StartDate.Format("2006-01-02"),
		EndDate:        l.EndDate.Format("2006-01-02"),
		WorkingDays:    l.WorkingDays,
		Reason:         l.Reason,
		Status:         l.Status,
		RequestedBy:    l.RequestedBy,
		CurrentManager: l.CurrentManager.String(),
		CreatedAt:      l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.ApprovedBy != nil {
		v := l.ApprovedBy.String()
		resp.ApprovedBy = &v
	}
	return resp
}

func mapToListResponse(leaves []Leave) []LeaveResponse {
	resp := make([]LeaveResponse, len(leaves))
	for i, l := range leaves {
		resp[i] = mapToResponse(l)
	}
	return resp
}
