//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based client.CredentialStore. It works with any
// database GORM supports (SQLite on device, PostgreSQL for shared kiosks, etc.).
//
// # Database Schema
//
// AutoMigrate creates a single table:
//   - stored_sessions: one row per identity project with the persisted session
//
// # Usage
//
//	db, _ := gorm.Open(sqlite.Open("pinged.db"), &gorm.Config{})
//	_ = gormstore.AutoMigrate(db)
//	store := gormstore.NewCredentialStore(db)
package gorm
