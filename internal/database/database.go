package database

import (
	"fmt"

	"github.com/notedeck/core/internal/config"
	"github.com/notedeck/core/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens a MySQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	return db, nil
}

// Migrate runs GORM auto-migration for all models, plus the raw MySQL DDL
// auto-migration cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.UserModel{},
		&models.CategoryModel{},
		&models.NoteModel{},
		&models.FileModel{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() == "mysql" {
		// FULLTEXT backs the relevance-ranked search mode. MySQL has no
		// CREATE INDEX IF NOT EXISTS, so probe information_schema first.
		var count int64
		if err := db.Raw(
			"SELECT COUNT(*) FROM information_schema.statistics WHERE table_schema = DATABASE() AND table_name = 'notes' AND index_name = 'ft_notes_title_content'",
		).Scan(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := db.Exec("CREATE FULLTEXT INDEX `ft_notes_title_content` ON `notes` (`title`, `content`)").Error; err != nil {
				return err
			}
		}
	}

	return nil
}
