// Package config registers the application's config groups
package config

// Initialize is called from main so the init funcs in this package run
// before pkg/config loads them
func Initialize() {}
