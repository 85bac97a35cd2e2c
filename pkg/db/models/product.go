package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductType is a coarse catalog grouping (vegetables, fruit, dairy, ...).
type ProductType struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Label     string    `gorm:"column:label;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Product is the canonical catalog listing a lot refers to.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TypeID      uuid.UUID `gorm:"column:type_id;type:uuid;not null"`
	Label       string    `gorm:"column:label;not null;uniqueIndex"`
	Description string    `gorm:"column:description;not null"`
	Unit        string    `gorm:"column:unit;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Producer is the party that proposes lots.
type Producer struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	Address   *string   `gorm:"column:address"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
