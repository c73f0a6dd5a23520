//go:build sqlite_vec && cgo

// Package store's similarity search runs on the real sqlite-vec extension
// when this build tag is set, rather than the pure-Go fallback registered
// in vec_compat.go.
package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	vec.Auto()
}
