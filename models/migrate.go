package models

import "gorm.io/gorm"

// All returns every model in foreign-key dependency order
func All() []interface{} {
	return []interface{}{
		&User{},
		&Product{},
		&Order{},
		&OrderItem{},
		&ReturnRequest{},
		&Notification{},
		&Message{},
	}
}

// Migrate creates or updates the schema for every model
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
