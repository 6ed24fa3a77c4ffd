// Package rules declares the Rules Engine collaborator consumed by match
// synchronization and ships Freeform, a small reference engine used by the
// terminal client and the dev server.
//
// Engines are pure: Apply never mutates its input position and the same
// history always produces the same position.
package rules
