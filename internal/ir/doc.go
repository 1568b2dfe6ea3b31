// Package ir provides the value types shared by every load order package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// data model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - ParentEntity is a closed sum type (loadout | collection group)
//   - Sort indices are dense and zero-based at rest
//   - Keys are opaque, compared with ==, and never recycled
//   - Fingerprints use canonical JSON with domain-separated SHA-256
package ir
