package pkg

import (
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// oneActiveAttemptIndex allows at most one in-progress attempt per user and exam.
const oneActiveAttemptIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_attempt_one_active
	ON attempts (user_id, exam_id) WHERE status = 'in_progress'`

func InitDatabase(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// Unique violations surface as gorm.ErrDuplicatedKey.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates every table plus the partial indexes gorm tags
// cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	if err := db.Exec(oneActiveAttemptIndex).Error; err != nil {
		return fmt.Errorf("failed to create active attempt index: %w", err)
	}
	return nil
}
