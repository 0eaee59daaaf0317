// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free of ORM
// concerns; each model carries ToDomain / ...FromDomain mappers used by the repositories.
package models
