package leave_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"go-leavedesk/internal/calendar"
	"go-leavedesk/internal/employee"
	"go-leavedesk/internal/leave"
	leaveerrors "go-leavedesk/internal/leave/errors"
	"go-leavedesk/internal/ledger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type fakeLeaveRepository struct {
	createFn                 func(ctx context.Context, l *leave.Leave) error
	findAllFn                func(ctx context.Context) ([]leave.Leave, error)
	findByIDFn               func(ctx context.Context, id string) (*leave.Leave, error)
	findByEmployeeFn         func(ctx context.Context, employeeID string) ([]leave.Leave, error)
	findPendingByManagerFn   func(ctx context.Context, managerID string) ([]leave.Leave, error)
	updateFn                 func(ctx context.Context, l *leave.Leave) error
	hasOverlappingPeriodFn   func(ctx context.Context, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error)
	reassignPendingManagerFn func(ctx context.Context, employeeID, newManagerID string) error
	deleteByEmployeeFn       func(ctx context.Context, employeeID string) error
	reassignCurrentManagerFn func(ctx context.Context, managerID, newManagerID string) error
}

func (f *fakeLeaveRepository) WithTx(tx *sql.Tx) leave.Repository {
	return f
}

func (f *fakeLeaveRepository) Create(ctx context.Context, l *leave.Leave) error {
	if f.createFn != nil {
		return f.createFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) FindAll(ctx context.Context) ([]leave.Leave, error) {
	if f.findAllFn != nil {
		return f.findAllFn(ctx)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) FindByID(ctx context.Context, id string) (*leave.Leave, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLeaveRepository) FindByEmployee(ctx context.Context, employeeID string) ([]leave.Leave, error) {
	if f.findByEmployeeFn != nil {
		return f.findByEmployeeFn(ctx, employeeID)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) FindPendingByManager(ctx context.Context, managerID string) ([]leave.Leave, error) {
	if f.findPendingByManagerFn != nil {
		return f.findPendingByManagerFn(ctx, managerID)
	}
	return nil, nil
}

func (f *fakeLeaveRepository) Update(ctx context.Context, l *leave.Leave) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, l)
	}
	return nil
}

func (f *fakeLeaveRepository) HasOverlappingPeriod(ctx context.Context, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
	if f.hasOverlappingPeriodFn != nil {
		return f.hasOverlappingPeriodFn(ctx, employeeID, startDate, endDate, excludeID)
	}
	return false, nil
}

func (f *fakeLeaveRepository) ReassignPendingManager(ctx context.Context, employeeID, newManagerID string) error {
	if f.reassignPendingManagerFn != nil {
		return f.reassignPendingManagerFn(ctx, employeeID, newManagerID)
	}
	return nil
}

func (f *fakeLeaveRepository) DeleteByEmployee(ctx context.Context, employeeID string) error {
	if f.deleteByEmployeeFn != nil {
		return f.deleteByEmployeeFn(ctx, employeeID)
	}
	return nil
}

func (f *fakeLeaveRepository) ReassignCurrentManager(ctx context.Context, managerID, newManagerID string) error {
	if f.reassignCurrentManagerFn != nil {
		return f.reassignCurrentManagerFn(ctx, managerID, newManagerID)
	}
	return nil
}

// fakeEmployeeRepository keeps balance snapshots in memory so ledger
// round trips can be asserted end to end.
type fakeEmployeeRepository struct {
	mu         sync.Mutex
	employees  map[string]*employee.Employee
	balances   map[string]ledger.Snapshot
	findByIDFn func(ctx context.Context, id string) (*employee.Employee, error)
	getErr     error
	saveErr    error

	// failSaveOn fails the Nth SaveBalances call, for exercising
	// mid-operation write failures.
	failSaveOn int
	saveCalls  int
}

func newFakeEmployeeRepository() *fakeEmployeeRepository {
	return &fakeEmployeeRepository{
		employees: make(map[string]*employee.Employee),
		balances:  make(map[string]ledger.Snapshot),
	}
}

func (f *fakeEmployeeRepository) add(empl *employee.Employee) {
	f.employees[empl.ID.String()] = empl
	f.balances[empl.ID.String()] = ledger.Snapshot{
		PaidBalance: empl.LeaveBalance,
		UnpaidTaken: empl.UnpaidLeaves,
	}
}

func (f *fakeEmployeeRepository) WithTx(tx *sql.Tx) employee.Repository {
	return f
}

func (f *fakeEmployeeRepository) Create(ctx context.Context, empl *employee.Employee) error {
	return nil
}

func (f *fakeEmployeeRepository) FindAll(ctx context.Context) ([]employee.Employee, error) {
	return nil, nil
}

func (f *fakeEmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	if f.findByIDFn != nil {
		return f.findByIDFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	empl, ok := f.employees[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	// Reflect the latest snapshot so balance prechecks observe prior
	// ledger writes.
	snap := f.balances[id]
	copied := *empl
	copied.LeaveBalance = snap.PaidBalance
	copied.UnpaidLeaves = snap.UnpaidTaken
	return &copied, nil
}

func (f *fakeEmployeeRepository) Update(ctx context.Context, empl *employee.Employee) error {
	return nil
}

func (f *fakeEmployeeRepository) Delete(ctx context.Context, id string) error {
	return nil
}

func (f *fakeEmployeeRepository) FindSubordinates(ctx context.Context, managerID string) ([]employee.Employee, error) {
	return nil, nil
}

func (f *fakeEmployeeRepository) ReassignSubordinates(ctx context.Context, managerID, newManagerID string) error {
	return nil
}

func (f *fakeEmployeeRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	return 0, nil
}

func (f *fakeEmployeeRepository) GetBalances(ctx context.Context, employeeID string) (ledger.Snapshot, error) {
	if f.getErr != nil {
		return ledger.Snapshot{}, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[employeeID], nil
}

func (f *fakeEmployeeRepository) SaveBalances(ctx context.Context, employeeID string, snap ledger.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.failSaveOn != 0 && f.saveCalls == f.failSaveOn {
		return errors.New("save balances failed")
	}
	f.balances[employeeID] = snap
	return nil
}

type leaveServiceDeps struct {
	db               *sql.DB
	sqlMock          sqlmock.Sqlmock
	service          leave.Service
	repo             *fakeLeaveRepository
	employees        *fakeEmployeeRepository
	defaultManagerID string
}

func setupLeaveServiceTest(t *testing.T) *leaveServiceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	assert.NoError(t, err)

	repo := &fakeLeaveRepository{}
	employees := newFakeEmployeeRepository()
	defaultManagerID := uuid.New().String()

	svc := leave.NewService(
		db,
		repo,
		employees,
		ledger.New(),
		calendar.NewHolidaySet(calendar.DefaultHolidays),
		defaultManagerID,
	)

	return &leaveServiceDeps{
		db:               db,
		sqlMock:          sqlMock,
		service:          svc,
		repo:             repo,
		employees:        employees,
		defaultManagerID: defaultManagerID,
	}
}

func expectTx(t *testing.T, mock sqlmock.Sqlmock, commit bool) {
	t.Helper()
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func seedEmployee(deps *leaveServiceDeps, balance int) *employee.Employee {
	managerID := uuid.New()
	empl := &employee.Employee{
		ID:           uuid.New(),
		FullName:     "Jane Doe",
		Email:        "jane@example.com",
		Role:         employee.RoleEmployee,
		ManagerID:    &managerID,
		LeaveBalance: balance,
	}
	deps.employees.add(empl)
	return empl
}

func TestLeaveService_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("success paid leave debits balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)
		expectTx(t, deps.sqlMock, true)

		var created *leave.Leave
		deps.repo.createFn = func(ctx context.Context, l *leave.Leave) error {
			created = l
			return nil
		}

		resp, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-03-03",
			EndDate:   "2025-03-07",
			Reason:    "Family trip",
		})

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusPending, resp.Status)
		assert.Equal(t, 5, resp.WorkingDays)
		assert.Equal(t, "Jane Doe (jane@example.com)", resp.RequestedBy)
		assert.Equal(t, empl.ManagerID.String(), resp.CurrentManager)
		assert.Nil(t, resp.ApprovedBy)

		assert.NotNil(t, created)
		assert.Equal(t, empl.ID, created.EmployeeID)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 15, snap.PaidBalance)
		assert.Equal(t, 0, snap.UnpaidTaken)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success weekend and holiday excluded", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)
		expectTx(t, deps.sqlMock, true)

		// 2025-01-13 .. 2025-01-17 is Mon..Fri with a holiday on the 14th.
		resp, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-01-13",
			EndDate:   "2025-01-17",
			Reason:    "Errand",
		})

		assert.NoError(t, err)
		assert.Equal(t, 4, resp.WorkingDays)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 16, snap.PaidBalance)
	})

	t.Run("success unpaid type accrues unpaid days", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypeMaternity,
			StartDate: "2025-03-03",
			EndDate:   "2025-03-07",
			Reason:    "Maternity leave",
		})

		assert.NoError(t, err)
		assert.Equal(t, 5, resp.WorkingDays)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 20, snap.PaidBalance)
		assert.Equal(t, 5, snap.UnpaidTaken)
	})

	t.Run("success default manager fallback", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := &employee.Employee{
			ID:           uuid.New(),
			FullName:     "Root Manager",
			Email:        "root@example.com",
			Role:         employee.RoleManager,
			LeaveBalance: 20,
		}
		deps.employees.add(empl)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-03-03",
			EndDate:   "2025-03-03",
			Reason:    "Errand",
		})

		assert.NoError(t, err)
		assert.Equal(t, deps.defaultManagerID, resp.CurrentManager)
	})

	t.Run("negative invalid date format", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)

		_, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "03/03/2025",
			EndDate:   "2025-03-07",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateFormat)
	})

	t.Run("negative start after end", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)

		_, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-03-07",
			EndDate:   "2025-03-03",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidDateRange)
	})

	t.Run("negative overlapping period", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)
		expectTx(t, deps.sqlMock, false)

		deps.repo.hasOverlappingPeriodFn = func(ctx context.Context, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
			assert.Nil(t, excludeID)
			return true, nil
		}

		_, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-03-03",
			EndDate:   "2025-03-07",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveOverlap)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 20, snap.PaidBalance)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative insufficient balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 3)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-03-03",
			EndDate:   "2025-03-07",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInsufficientBalance)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 3, snap.PaidBalance)
	})

	t.Run("negative employee not found", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Apply(ctx, uuid.New().String(), leave.ApplyLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-03-03",
			EndDate:   "2025-03-07",
			Reason:    "Trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrEmployeeNotFound)
	})
}

func seedLeave(deps *leaveServiceDeps, empl *employee.Employee, status string, days int) *leave.Leave {
	l := &leave.Leave{
		ID:             uuid.New(),
		EmployeeID:     empl.ID,
		LeaveType:      leave.TypePaid,
		StartDate:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC),
		WorkingDays:    days,
		Reason:         "Family trip",
		Status:         status,
		RequestedBy:    "Jane Doe (jane@example.com)",
		CurrentManager: *empl.ManagerID,
	}
	deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.Leave, error) {
		if id == l.ID.String() {
			copied := *l
			return &copied, nil
		}
		return nil, gorm.ErrRecordNotFound
	}
	return l
}

func TestLeaveService_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, true)

		var updated *leave.Leave
		deps.repo.updateFn = func(ctx context.Context, l *leave.Leave) error {
			updated = l
			return nil
		}

		resp, err := deps.service.Approve(ctx, l.ID.String(), empl.ManagerID.String())

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusApproved, resp.Status)
		assert.NotNil(t, resp.ApprovedBy)
		assert.Equal(t, empl.ManagerID.String(), *resp.ApprovedBy)
		assert.Equal(t, leave.StatusApproved, updated.Status)

		// Approval must not touch the ledger.
		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 15, snap.PaidBalance)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative not current manager", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Approve(ctx, l.ID.String(), uuid.New().String())

		assert.ErrorIs(t, err, leaveerrors.ErrNotCurrentManager)
	})

	t.Run("negative already approved", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusApproved, 5)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Approve(ctx, l.ID.String(), empl.ManagerID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatusTransition)
	})

	t.Run("negative not found", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		_, err := deps.service.Approve(ctx, uuid.New().String(), uuid.New().String())

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
	})
}

func TestLeaveService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("success refunds paid balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Reject(ctx, l.ID.String(), empl.ManagerID.String())

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusRejected, resp.Status)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 20, snap.PaidBalance)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success unpaid accrual reversed and clamped", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		l.LeaveType = leave.TypeBereavement
		expectTx(t, deps.sqlMock, true)

		_, err := deps.service.Reject(ctx, l.ID.String(), empl.ManagerID.String())

		assert.NoError(t, err)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 20, snap.PaidBalance)
		assert.Equal(t, 0, snap.UnpaidTaken)
	})

	t.Run("negative rejected twice", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)
		l := seedLeave(deps, empl, leave.StatusRejected, 5)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Reject(ctx, l.ID.String(), empl.ManagerID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatusTransition)
	})
}

func TestLeaveService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("success pending refunds balance", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Cancel(ctx, l.ID.String(), empl.ID.String())

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusCanceled, resp.Status)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 20, snap.PaidBalance)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success approved but not started", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusApproved, 5)
		future := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 7)
		l.StartDate = future
		l.EndDate = future.AddDate(0, 0, 4)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Cancel(ctx, l.ID.String(), empl.ID.String())

		assert.NoError(t, err)
		assert.Equal(t, leave.StatusCanceled, resp.Status)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 20, snap.PaidBalance)
	})

	t.Run("negative approved already started", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusApproved, 5)
		past := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -2)
		l.StartDate = past
		l.EndDate = past.AddDate(0, 0, 4)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Cancel(ctx, l.ID.String(), empl.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveAlreadyStarted)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 15, snap.PaidBalance)
	})

	t.Run("negative not owner", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Cancel(ctx, l.ID.String(), uuid.New().String())

		assert.ErrorIs(t, err, leaveerrors.ErrNotLeaveOwner)
	})

	t.Run("negative terminal status", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 20)
		l := seedLeave(deps, empl, leave.StatusCanceled, 5)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Cancel(ctx, l.ID.String(), empl.ID.String())

		assert.ErrorIs(t, err, leaveerrors.ErrInvalidStatusTransition)
	})
}

func TestLeaveService_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("success reason only skips overlap and ledger", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, true)

		overlapCalled := false
		deps.repo.hasOverlappingPeriodFn = func(ctx context.Context, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
			overlapCalled = true
			return false, nil
		}

		resp, err := deps.service.Edit(ctx, l.ID.String(), empl.ID.String(), leave.EditLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-06-02",
			EndDate:   "2025-06-06",
			Reason:    "Updated reason",
		})

		assert.NoError(t, err)
		assert.Equal(t, "Updated reason", resp.Reason)
		assert.Equal(t, 5, resp.WorkingDays)
		assert.False(t, overlapCalled)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 15, snap.PaidBalance)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("success shrinking range refunds difference", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, true)

		deps.repo.hasOverlappingPeriodFn = func(ctx context.Context, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
			assert.NotNil(t, excludeID)
			assert.Equal(t, l.ID.String(), *excludeID)
			return false, nil
		}

		resp, err := deps.service.Edit(ctx, l.ID.String(), empl.ID.String(), leave.EditLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-06-02",
			EndDate:   "2025-06-04",
			Reason:    "Family trip",
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, resp.WorkingDays)
		assert.Equal(t, leave.StatusPending, resp.Status)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 17, snap.PaidBalance)
	})

	t.Run("success switching paid to unpaid", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, true)

		resp, err := deps.service.Edit(ctx, l.ID.String(), empl.ID.String(), leave.EditLeaveRequest{
			LeaveType: leave.TypeUnpaid,
			StartDate: "2025-06-02",
			EndDate:   "2025-06-06",
			Reason:    "Family trip",
		})

		assert.NoError(t, err)
		assert.Equal(t, leave.TypeUnpaid, resp.LeaveType)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 20, snap.PaidBalance)
		assert.Equal(t, 5, snap.UnpaidTaken)
	})

	t.Run("negative insufficient balance leaves state untouched", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		// Balance 15 after a 5 day debit; growing to 25 days needs more
		// than the 20 available after reversal.
		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Edit(ctx, l.ID.String(), empl.ID.String(), leave.EditLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-06-02",
			EndDate:   "2025-07-04",
			Reason:    "Long trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrInsufficientBalance)

		snap, _ := deps.employees.GetBalances(ctx, empl.ID.String())
		assert.Equal(t, 15, snap.PaidBalance)
	})

	t.Run("negative failed reapply never commits", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, false)

		// Reversal is the first balance write, the replacement debit the
		// second; failing the second must roll the whole edit back.
		deps.employees.failSaveOn = 2

		updated := false
		deps.repo.updateFn = func(ctx context.Context, l *leave.Leave) error {
			updated = true
			return nil
		}

		_, err := deps.service.Edit(ctx, l.ID.String(), empl.ID.String(), leave.EditLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-06-02",
			EndDate:   "2025-06-04",
			Reason:    "Family trip",
		})

		assert.Error(t, err)
		assert.False(t, updated)
		assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
	})

	t.Run("negative overlap on new range", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, false)

		deps.repo.hasOverlappingPeriodFn = func(ctx context.Context, employeeID string, startDate, endDate time.Time, excludeID *string) (bool, error) {
			return true, nil
		}

		_, err := deps.service.Edit(ctx, l.ID.String(), empl.ID.String(), leave.EditLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-06-09",
			EndDate:   "2025-06-11",
			Reason:    "Family trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveOverlap)
	})

	t.Run("negative not owner", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		empl := seedEmployee(deps, 15)
		l := seedLeave(deps, empl, leave.StatusPending, 5)
		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Edit(ctx, l.ID.String(), uuid.New().String(), leave.EditLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-06-02",
			EndDate:   "2025-06-06",
			Reason:    "Family trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrNotLeaveOwner)
	})

	t.Run("negative not found", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		expectTx(t, deps.sqlMock, false)

		_, err := deps.service.Edit(ctx, uuid.New().String(), uuid.New().String(), leave.EditLeaveRequest{
			LeaveType: leave.TypePaid,
			StartDate: "2025-06-02",
			EndDate:   "2025-06-06",
			Reason:    "Family trip",
		})

		assert.ErrorIs(t, err, leaveerrors.ErrLeaveNotFound)
	})
}

func TestLeaveService_Queries(t *testing.T) {
	ctx := context.Background()

	t.Run("get by employee", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		employeeID := uuid.New()
		deps.repo.findByEmployeeFn = func(ctx context.Context, eid string) ([]leave.Leave, error) {
			assert.Equal(t, employeeID.String(), eid)
			return []leave.Leave{
				{
					ID:             uuid.New(),
					EmployeeID:     employeeID,
					LeaveType:      leave.TypePaid,
					StartDate:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
					EndDate:        time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC),
					WorkingDays:    5,
					Status:         leave.StatusPending,
					CurrentManager: uuid.New(),
				},
			}, nil
		}

		resp, err := deps.service.GetByEmployee(ctx, employeeID.String())

		assert.NoError(t, err)
		assert.Len(t, resp, 1)
		assert.Equal(t, "2025-06-02", resp[0].StartDate)
		assert.Equal(t, 5, resp[0].WorkingDays)
	})

	t.Run("pending for manager", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		managerID := uuid.New()
		deps.repo.findPendingByManagerFn = func(ctx context.Context, mid string) ([]leave.Leave, error) {
			assert.Equal(t, managerID.String(), mid)
			return []leave.Leave{
				{ID: uuid.New(), EmployeeID: uuid.New(), Status: leave.StatusPending, CurrentManager: managerID},
			}, nil
		}

		resp, err := deps.service.GetPendingForManager(ctx, managerID.String())

		assert.NoError(t, err)
		assert.Len(t, resp, 1)
		assert.Equal(t, leave.StatusPending, resp[0].Status)
	})

	t.Run("negative repo error", func(t *testing.T) {
		deps := setupLeaveServiceTest(t)
		defer deps.db.Close()

		deps.repo.findAllFn = func(ctx context.Context) ([]leave.Leave, error) {
			return nil, errors.New("db error")
		}

		resp, err := deps.service.GetAll(ctx)

		assert.Error(t, err)
		assert.Nil(t, resp)
	})
}

// Applying and then cancelling a request must restore the exact
// starting counters, whatever the leave type.
func TestLeaveService_ApplyCancelRoundTrip(t *testing.T) {
	ctx := context.Background()

	for _, leaveType := range []string{leave.TypePaid, leave.TypeUnpaid, leave.TypePaternity} {
		t.Run(leaveType, func(t *testing.T) {
			deps := setupLeaveServiceTest(t)
			defer deps.db.Close()

			empl := seedEmployee(deps, 20)
			before, _ := deps.employees.GetBalances(ctx, empl.ID.String())

			expectTx(t, deps.sqlMock, true)
			var created *leave.Leave
			deps.repo.createFn = func(ctx context.Context, l *leave.Leave) error {
				created = l
				return nil
			}

			_, err := deps.service.Apply(ctx, empl.ID.String(), leave.ApplyLeaveRequest{
				LeaveType: leaveType,
				StartDate: "2025-09-01",
				EndDate:   "2025-09-05",
				Reason:    "Round trip",
			})
			assert.NoError(t, err)

			deps.repo.findByIDFn = func(ctx context.Context, id string) (*leave.Leave, error) {
				copied := *created
				return &copied, nil
			}

			expectTx(t, deps.sqlMock, true)
			_, err = deps.service.Cancel(ctx, created.ID.String(), empl.ID.String())
			assert.NoError(t, err)

			after, _ := deps.employees.GetBalances(ctx, empl.ID.String())
			assert.Equal(t, before, after)
		})
	}
}
