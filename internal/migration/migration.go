package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	"github.com/smallbiznis/crewbill/internal/config"
	customerdomain "github.com/smallbiznis/crewbill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/crewbill/internal/invoice/domain"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	projectdomain "github.com/smallbiznis/crewbill/internal/project/domain"
	timeentrydomain "github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&personneldomain.Personnel{},
		&projectdomain.Project{},
		&projectdomain.RateBracket{},
		&projectdomain.Assignment{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&invoicedomain.InvoiceSequence{},
		&timeentrydomain.TimeEntry{},
		&auditdomain.AuditLog{},
	}
}

// Run applies the embedded SQL migrations on postgres and falls back to
// AutoMigrate for the other dialects.
func Run(conn *gorm.DB, cfg config.Config) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if cfg.DBType != "postgres" {
		return AutoMigrate(conn)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
