package app

import (
	"database/sql"
	"os"
	"strings"

	"go-leavedesk/internal/calendar"
	"go-leavedesk/internal/employee"
	"go-leavedesk/internal/leave"
	"go-leavedesk/internal/ledger"
	"go-leavedesk/internal/messaging/kafka"
	"go-leavedesk/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
	defaultManagerID string,
) error {
	// --- Repositories ---
	employeeRepo := employee.NewRepository(gormDB)
	leaveRepo := leave.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- Domain Core ---
	balanceLedger := ledger.New()
	holidays := calendar.NewHolidaySet(holidayDates())

	// --- Services ---
	leaveCascade := func(tx *sql.Tx) employee.LeaveCascade { return leaveRepo.WithTx(tx) }
	employeeService := employee.NewServiceWithOutbox(db, employeeRepo, leaveCascade, outboxRepo, rdb, defaultManagerID)
	leaveService := leave.NewServiceWithOutbox(db, leaveRepo, employeeRepo, balanceLedger, holidays, outboxRepo, defaultManagerID)

	// --- Handlers ---
	employeeHandler := employee.NewHandler(employeeService)
	leaveHandler := leave.NewHandler(leaveService)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequestID(),
		middleware.ContextLogger(zap.L()),
		middleware.RateLimitByIP(20, 40),
	)
	{
		employee.RegisterRoutes(api, employeeHandler)
		leave.RegisterRoutes(api, leaveHandler, rdb)
	}

	return nil
}

// holidayDates reads the HOLIDAYS env var (comma-separated YYYY-MM-DD
// values), falling back to the built-in company calendar.
func holidayDates() []string {
	raw := os.Getenv("HOLIDAYS")
	if raw == "" {
		return calendar.DefaultHolidays
	}

	parts := strings.Split(raw, ",")
	dates := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			dates = append(dates, trimmed)
		}
	}
	if len(dates) == 0 {
		return calendar.DefaultHolidays
	}
	return dates
}
