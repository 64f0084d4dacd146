package employee_test

import (
	"context"
	"database/sql"
	"testing"

	"go-leavedesk/internal/employee"
	"go-leavedesk/internal/ledger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockGorm(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *gorm.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	assert.NoError(t, err)
	return db, mock, gdb
}

func TestEmployeeRepository_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("success balance write joins the transaction", func(t *testing.T) {
		db, mock, gdb := newMockGorm(t)
		defer db.Close()

		repo := employee.NewRepository(gdb)
		emplID := uuid.New().String()

		// A single exec between Begin and Commit: the bound statement
		// must not open its own transaction.
		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "employees" SET`).
			WithArgs(15, 3, sqlmock.AnyArg(), emplID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = repo.WithTx(tx).SaveBalances(ctx, emplID, ledger.Snapshot{PaidBalance: 15, UnpaidTaken: 3})
		assert.NoError(t, err)

		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success rollback discards the balance write", func(t *testing.T) {
		db, mock, gdb := newMockGorm(t)
		defer db.Close()

		repo := employee.NewRepository(gdb)
		emplID := uuid.New().String()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "employees" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = repo.WithTx(tx).SaveBalances(ctx, emplID, ledger.Snapshot{PaidBalance: 20})
		assert.NoError(t, err)

		assert.NoError(t, tx.Rollback())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success subordinate rewrite joins the transaction", func(t *testing.T) {
		db, mock, gdb := newMockGorm(t)
		defer db.Close()

		repo := employee.NewRepository(gdb)
		managerID := uuid.New().String()
		fallbackID := uuid.New().String()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "employees" SET "manager_id"=`).
			WithArgs(fallbackID, sqlmock.AnyArg(), managerID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)

		err = repo.WithTx(tx).ReassignSubordinates(ctx, managerID, fallbackID)
		assert.NoError(t, err)

		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
