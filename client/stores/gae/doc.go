//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore client.CredentialStore, for
// deployments where the persisted session must survive the device (managed
// kiosks, test farms).
//
// Entities are stored under kind "StoredSession" keyed by project ID, in the
// namespace given to NewCredentialStore.
package gae
