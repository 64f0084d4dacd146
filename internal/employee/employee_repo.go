package employee

import (
	"context"
	"database/sql"

	"go-leavedesk/internal/ledger"

	"gorm.io/gorm"
)

//go:generate mockgen -source=employee_repo.go -destination=mock/employee_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, empl *Employee) error
	FindAll(ctx context.Context) ([]Employee, error)
	FindByID(ctx context.Context, id string) (*Employee, error)
	Update(ctx context.Context, empl *Employee) error
	Delete(ctx context.Context, id string) error
	FindSubordinates(ctx context.Context, managerID string) ([]Employee, error)
	ReassignSubordinates(ctx context.Context, managerID, newManagerID string) error
	CountByRole(ctx context.Context, role string) (int64, error)

	// ledger.BalanceStore
	GetBalances(ctx context.Context, employeeID string) (ledger.Snapshot, error)
	SaveBalances(ctx context.Context, employeeID string, snap ledger.Snapshot) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx rebinds every statement to the caller's transaction, so balance
// writes commit or roll back together with the record mutation.
func (r *repository) WithTx(tx *sql.Tx) Repository {
	session := r.db.Session(&gorm.Session{NewDB: true})
	session.Statement.ConnPool = tx
	return &repository{db: session}
}

func (r *repository) Create(ctx context.Context, empl *Employee) error {
	return r.db.WithContext(ctx).Create(empl).Error
}

func (r *repository) FindAll(ctx context.Context) ([]Employee, error) {
	var empls []Employee
	err := r.db.WithContext(ctx).
		Order("full_name ASC").
		Find(&empls).Error
	return empls, err
}

func (r *repository) FindByID(ctx context.Context, id string) (*Employee, error) {
	var empl Employee
	err := r.db.WithContext(ctx).First(&empl, "id = ?", id).Error
	return &empl, err
}

func (r *repository) Update(ctx context.Context, empl *Employee) error {
	return r.db.WithContext(ctx).Save(empl).Error
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&Employee{}, "id = ?", id).Error
}

func (r *repository) FindSubordinates(ctx context.Context, managerID string) ([]Employee, error) {
	var empls []Employee
	err := r.db.WithContext(ctx).
		Where("manager_id = ?", managerID).
		Find(&empls).Error
	return empls, err
}

func (r *repository) ReassignSubordinates(ctx context.Context, managerID, newManagerID string) error {
	return r.db.WithContext(ctx).
		Model(&Employee{}).
		Where("manager_id = ?", managerID).
		Update("manager_id", newManagerID).Error
}

func (r *repository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Employee{}).
		Where("role = ?", role).
		Count(&count).Error
	return count, err
}

func (r *repository) GetBalances(ctx context.Context, employeeID string) (ledger.Snapshot, error) {
	var empl Employee
	err := r.db.WithContext(ctx).
		Select("leave_balance", "unpaid_leaves").
		First(&empl, "id = ?", employeeID).Error
	if err != nil {
		return ledger.Snapshot{}, err
	}
	return ledger.Snapshot{PaidBalance: empl.LeaveBalance, UnpaidTaken: empl.UnpaidLeaves}, nil
}

func (r *repository) SaveBalances(ctx context.Context, employeeID string, snap ledger.Snapshot) error {
	return r.db.WithContext(ctx).
		Model(&Employee{}).
		Where("id = ?", employeeID).
		Updates(map[string]any{
			"leave_balance": snap.PaidBalance,
			"unpaid_leaves": snap.UnpaidTaken,
		}).Error
}
