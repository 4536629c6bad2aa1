// Command migrate_history copies broadcast history from the SQLite database
// to PostgreSQL and resyncs the PostgreSQL id sequences.
package main

import (
	"log"

	"whatsapp-sender/internal/config"
	"whatsapp-sender/internal/database"
	"whatsapp-sender/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

func main() {
	cfg := config.LoadConfig()

	// 1. Connect to SQLite (Source)
	sqliteDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to SQLite: %v", err)
	}
	log.Printf("Connected to SQLite at %s", cfg.DBPath)

	// 2. Connect to PostgreSQL (Destination)
	pgDB, err := gorm.Open(postgres.Open(database.PostgresDSN(cfg)), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	if err := database.Migrate(pgDB); err != nil {
		log.Fatalf("Failed to migrate PostgreSQL schema: %v", err)
	}

	log.Println("Starting history migration...")

	// Runs first, attempts reference them.
	if err := copyTable[models.BroadcastRun](sqliteDB, pgDB, "broadcast_runs"); err != nil {
		log.Fatalf("Error migrating broadcast_runs: %v", err)
	}
	if err := copyTable[models.SendAttempt](sqliteDB, pgDB, "send_attempts"); err != nil {
		log.Fatalf("Error migrating send_attempts: %v", err)
	}

	if err := syncSequence(pgDB, "send_attempts"); err != nil {
		log.Fatalf("Error syncing sequence for send_attempts: %v", err)
	}

	log.Println("Migration completed!")
}

// copyTable inserts every row of table that the destination does not have
// yet, keeping IDs.
func copyTable[T any](src, dst *gorm.DB, table string) error {
	log.Printf("Migrating table: %s", table)

	var rows []T
	if err := src.Table(table).Find(&rows).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		log.Printf("Nothing to migrate in %s", table)
		return nil
	}

	err := dst.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, batchSize).Error
	})
	if err != nil {
		return err
	}
	log.Printf("Successfully migrated %d rows of %s", len(rows), table)
	return nil
}

// syncSequence moves the serial sequence past the copied IDs.
func syncSequence(db *gorm.DB, table string) error {
	query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
	return db.Exec(query).Error
}
