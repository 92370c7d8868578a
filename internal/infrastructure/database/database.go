package database

import (
	"promptmarket/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres or pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind PgBouncer-style poolers.
// TranslateError turns driver unique violations into gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
}

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Category{},
		&domain.Tag{},
		&domain.Listing{},
		&domain.ListingEvent{},
		&domain.Purchase{},
		&domain.Payment{},
		&domain.Payout{},
		&domain.Review{},
		&domain.ReviewVote{},
	}
}

// AutoMigrate runs migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
