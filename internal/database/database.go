package database

import (
	"wislet-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Supabase/Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers.
// TranslateError turns driver unique-violation errors into
// gorm.ErrDuplicatedKey, which the conversion bump-retry loop relies on.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
}

// AutoMigrate runs migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Hold{},
		&domain.SellBatch{},
		&domain.Order{},
		&domain.FounderCard{},
		&domain.ManualConvertRequest{},
		&domain.User{},
		&domain.WalletUser{},
		&domain.WalletInvite{},
	)
}
