// Package testutil provides helpers shared by package tests: temp-dir
// stores, membership fixtures, a storage decorator that slows writes down,
// and loggers that capture output.
package testutil
