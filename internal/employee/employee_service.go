package employee

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	employeeerrors "go-leavedesk/internal/employee/errors"
	"go-leavedesk/internal/events"
	"go-leavedesk/internal/messaging/kafka"
	"go-leavedesk/internal/shared/contextutil"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

const EmployeeOptionsKey = "employees:options"

// LeaveCascade is the slice of the leave store the reassignment cascade
// rewrites. Satisfied by the leave repository.
type LeaveCascade interface {
	ReassignPendingManager(ctx context.Context, employeeID, newManagerID string) error
	DeleteByEmployee(ctx context.Context, employeeID string) error
	ReassignCurrentManager(ctx context.Context, managerID, newManagerID string) error
}

// LeaveCascadeBinder yields the cascade bound to the given transaction,
// so leave rewrites commit or roll back with the employee mutation.
type LeaveCascadeBinder func(tx *sql.Tx) LeaveCascade

//go:generate mockgen -source=employee_service.go -destination=mock/employee_service_mock.go -package=mock
type Service interface {
	Create(ctx context.Context, req CreateEmployeeRequest) (EmployeeResponse, error)
	GetAll(ctx context.Context) ([]EmployeeResponse, error)
	GetOptions(ctx context.Context) ([]EmployeeOption, error)
	GetByID(ctx context.Context, id string) (EmployeeResponse, error)
	Update(ctx context.Context, id string, req UpdateEmployeeRequest) (EmployeeResponse, error)
	ReassignManager(ctx context.Context, employeeID, newManagerID string) error
	Delete(ctx context.Context, id, fallbackManagerID string) error
}

type service struct {
	db               *sql.DB
	repo             Repository
	leaves           LeaveCascadeBinder
	outbox           kafka.OutboxRepository
	rdb              *redis.Client
	sf               *singleflight.Group
	defaultManagerID string
	logger           *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	leaves LeaveCascadeBinder,
	defaultManagerID string,
	logger ...*zap.Logger,
) Service {
	return NewServiceWithOutbox(db, repo, leaves, nil, nil, defaultManagerID, logger...)
}

func NewServiceWithOutbox(
	db *sql.DB,
	repo Repository,
	leaves LeaveCascadeBinder,
	outboxRepo kafka.OutboxRepository,
	rdb *redis.Client,
	defaultManagerID string,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("employee.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("employee.service")
	}
	return &service{
		db:               db,
		repo:             repo,
		leaves:           leaves,
		outbox:           outboxRepo,
		rdb:              rdb,
		sf:               &singleflight.Group{},
		defaultManagerID: defaultManagerID,
		logger:           l,
	}
}

func (s *service) Create(ctx context.Context, req CreateEmployeeRequest) (EmployeeResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("create employee requested",
		zap.String("request_id", rid),
		zap.String("email", req.Email),
		zap.String("role", req.Role),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("create employee begin tx failed", zap.String("request_id", rid), zap.Error(err))
		return EmployeeResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	var managerID *uuid.UUID
	if req.ManagerID != "" {
		parsed, err := uuid.Parse(req.ManagerID)
		if err != nil {
			return EmployeeResponse{}, employeeerrors.ErrInvalidManagerID
		}
		if _, err := qtx.FindByID(ctx, req.ManagerID); err != nil {
			s.logger.Warn("create employee manager lookup failed",
				zap.String("manager_id", req.ManagerID),
				zap.Error(err),
			)
			return EmployeeResponse{}, employeeerrors.ErrManagerNotFound
		}
		managerID = &parsed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("create employee hash password failed", zap.Error(err))
		return EmployeeResponse{}, err
	}

	empl := &Employee{
		ID:           uuid.New(),
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Gender:       req.Gender,
		Department:   req.Department,
		ManagerID:    managerID,
		LeaveBalance: DefaultLeaveBalance,
		UnpaidLeaves: 0,
	}

	if err := qtx.Create(ctx, empl); err != nil {
		s.logger.Error("create employee persist failed", zap.Error(err))
		return EmployeeResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("create employee commit failed", zap.String("request_id", rid), zap.Error(err))
		return EmployeeResponse{}, err
	}

	s.invalidateOptionsCache(ctx)
	s.logger.Info("create employee success",
		zap.String("request_id", rid),
		zap.String("employee_id", empl.ID.String()),
	)

	return mapToResponse(*empl), nil
}

func (s *service) GetAll(ctx context.Context) ([]EmployeeResponse, error) {
	empls, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("get all employees failed", zap.Error(err))
		return nil, mapRepositoryError(err)
	}
	return mapToListResponse(empls), nil
}

func (s *service) GetOptions(ctx context.Context) ([]EmployeeOption, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, EmployeeOptionsKey).Result(); err == nil {
			var resp []EmployeeOption
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return resp, nil
			}
		}
	}

	// singleflight keeps a burst of dropdown loads from hammering the store
	v, err, _ := s.sf.Do(EmployeeOptionsKey, func() (interface{}, error) {
		empls, err := s.repo.FindAll(ctx)
		if err != nil {
			return nil, mapRepositoryError(err)
		}

		resp := make([]EmployeeOption, len(empls))
		for i, e := range empls {
			resp[i] = EmployeeOption{ID: e.ID.String(), FullName: e.FullName, Role: e.Role}
		}

		if s.rdb != nil {
			if jsonData, err := json.Marshal(resp); err == nil {
				s.rdb.Set(ctx, EmployeeOptionsKey, jsonData, 1*time.Hour)
			}
		}

		return resp, nil
	})

	if err != nil {
		return nil, err
	}

	return v.([]EmployeeOption), nil
}

func (s *service) GetByID(ctx context.Context, id string) (EmployeeResponse, error) {
	empl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logger.Error("get employee by id failed", zap.String("employee_id", id), zap.Error(err))
		return EmployeeResponse{}, mapRepositoryError(err)
	}
	return mapToResponse(*empl), nil
}

func (s *service) Update(ctx context.Context, id string, req UpdateEmployeeRequest) (EmployeeResponse, error) {
	s.logger.Debug("update employee requested",
		zap.String("employee_id", id),
		zap.String("manager_id", req.ManagerID),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("update employee begin tx failed", zap.Error(err))
		return EmployeeResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	empl, err := qtx.FindByID(ctx, id)
	if err != nil {
		return EmployeeResponse{}, mapRepositoryError(err)
	}

	var managerID *uuid.UUID
	if req.ManagerID != "" {
		parsed, err := uuid.Parse(req.ManagerID)
		if err != nil {
			return EmployeeResponse{}, employeeerrors.ErrInvalidManagerID
		}
		if _, err := qtx.FindByID(ctx, req.ManagerID); err != nil {
			return EmployeeResponse{}, employeeerrors.ErrManagerNotFound
		}
		managerID = &parsed
	}

	managerChanged := req.ManagerID != "" &&
		(empl.ManagerID == nil || empl.ManagerID.String() != req.ManagerID)

	empl.FullName = req.FullName
	empl.Email = req.Email
	empl.Role = req.Role
	empl.Gender = req.Gender
	empl.Department = req.Department
	empl.ManagerID = managerID

	if err := qtx.Update(ctx, empl); err != nil {
		s.logger.Error("update employee persist failed", zap.Error(err))
		return EmployeeResponse{}, mapRepositoryError(err)
	}

	// Forward-looking assignment only: pending records follow the new
	// manager, terminal records keep their original reference for audit.
	if managerChanged {
		if err := s.leaves(tx).ReassignPendingManager(ctx, id, req.ManagerID); err != nil {
			s.logger.Error("update employee leave cascade failed",
				zap.String("employee_id", id),
				zap.String("new_manager_id", req.ManagerID),
				zap.Error(err),
			)
			return EmployeeResponse{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("update employee commit failed", zap.Error(err))
		return EmployeeResponse{}, err
	}

	s.invalidateOptionsCache(ctx)
	s.logger.Info("update employee success",
		zap.String("employee_id", id),
		zap.Bool("manager_changed", managerChanged),
	)

	return mapToResponse(*empl), nil
}

func (s *service) ReassignManager(ctx context.Context, employeeID, newManagerID string) error {
	s.logger.Debug("reassign manager requested",
		zap.String("employee_id", employeeID),
		zap.String("new_manager_id", newManagerID),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("reassign manager begin tx failed", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	empl, err := qtx.FindByID(ctx, employeeID)
	if err != nil {
		return mapRepositoryError(err)
	}

	newManager, err := uuid.Parse(newManagerID)
	if err != nil {
		return employeeerrors.ErrInvalidManagerID
	}
	if _, err := qtx.FindByID(ctx, newManagerID); err != nil {
		return employeeerrors.ErrManagerNotFound
	}

	empl.ManagerID = &newManager
	if err := qtx.Update(ctx, empl); err != nil {
		return mapRepositoryError(err)
	}

	// Pure reference rewrite, so re-running after a partial failure
	// converges on the same state.
	if err := s.leaves(tx).ReassignPendingManager(ctx, employeeID, newManagerID); err != nil {
		s.logger.Error("reassign manager leave cascade failed",
			zap.String("employee_id", employeeID),
			zap.Error(err),
		)
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("reassign manager commit failed", zap.Error(err))
		return err
	}

	s.logger.Info("reassign manager success",
		zap.String("employee_id", employeeID),
		zap.String("new_manager_id", newManagerID),
	)
	return nil
}

func (s *service) Delete(ctx context.Context, id, fallbackManagerID string) error {
	rid := contextutil.GetRequestID(ctx)
	if fallbackManagerID == "" {
		fallbackManagerID = s.defaultManagerID
	}
	s.logger.Debug("delete employee requested",
		zap.String("request_id", rid),
		zap.String("employee_id", id),
		zap.String("fallback_manager_id", fallbackManagerID),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("delete employee begin tx failed", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	empl, err := qtx.FindByID(ctx, id)
	if err != nil {
		return mapRepositoryError(err)
	}

	// Protected entities, checked before any mutation.
	if id == s.defaultManagerID || id == fallbackManagerID {
		return employeeerrors.ErrDefaultManagerProtected
	}
	if empl.Role == RoleHR {
		hrCount, err := qtx.CountByRole(ctx, RoleHR)
		if err != nil {
			return mapRepositoryError(err)
		}
		if hrCount <= 1 {
			return employeeerrors.ErrLastHRProtected
		}
	}

	// Cascade: subordinates fall back to the default manager, the
	// employee's own records are removed, and records they were acting
	// manager on are rewritten. Every step is a reference rewrite or a
	// delete keyed on the employee id, so a retried run cannot
	// double-apply anything.
	if err := qtx.ReassignSubordinates(ctx, id, fallbackManagerID); err != nil {
		s.logger.Error("delete employee reassign subordinates failed", zap.Error(err))
		return err
	}
	leavesTx := s.leaves(tx)
	if err := leavesTx.DeleteByEmployee(ctx, id); err != nil {
		s.logger.Error("delete employee remove leave records failed", zap.Error(err))
		return err
	}
	if err := leavesTx.ReassignCurrentManager(ctx, id, fallbackManagerID); err != nil {
		s.logger.Error("delete employee rewrite current manager failed", zap.Error(err))
		return err
	}
	if err := qtx.Delete(ctx, id); err != nil {
		s.logger.Error("delete employee persist failed", zap.Error(err))
		return mapRepositoryError(err)
	}

	if s.outbox != nil {
		event := events.EmployeeDeletedEvent{
			EventType:         "employee_deleted",
			RequestID:         rid,
			EmployeeID:        id,
			FallbackManagerID: fallbackManagerID,
			OccurredAt:        time.Now().UTC(),
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
			AggregateType: "employee",
			AggregateID:   id,
			EventType:     event.EventType,
			Topic:         events.EmployeeLifecycleTopic,
			Payload:       payload,
			Status:        kafka.OutboxStatusPending,
		}); err != nil {
			s.logger.Error("delete employee outbox persist failed", zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("delete employee commit failed", zap.Error(err))
		return err
	}

	s.invalidateOptionsCache(ctx)
	s.logger.Info("delete employee success",
		zap.String("request_id", rid),
		zap.String("employee_id", id),
	)
	return nil
}

func (s *service) invalidateOptionsCache(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, EmployeeOptionsKey).Err(); err != nil {
		s.logger.Error("failed to invalidate employee options cache",
			zap.Error(err),
			zap.String("key", EmployeeOptionsKey),
		)
	}
}

func mapToResponse(empl Employee) EmployeeResponse {
	resp := EmployeeResponse{
		ID:           empl.ID.String(),
		FullName:     empl.FullName,
		Email:        empl.Email,
		Role:         empl.Role,
		Gender:       empl.Gender,
		Department:   empl.Department,
		LeaveBalance: empl.LeaveBalance,
		UnpaidLeaves: empl.UnpaidLeaves,
	}
	if empl.ManagerID != nil {
		v := empl.ManagerID.String()
		resp.ManagerID = &v
	}
	return resp
}

func mapToListResponse(empls []Employee) []EmployeeResponse {
	resp := make([]EmployeeResponse, len(empls))
	for i, e := range empls {
		resp[i] = mapToResponse(e)
	}
	return resp
}
