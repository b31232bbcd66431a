package store

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// postgresOpen builds the gorm.io/driver/postgres gorm.Dialector that
// Open dials for dsn.
func postgresOpen(dsn string) gorm.Dialector {
	return postgres.Open(dsn)
}
