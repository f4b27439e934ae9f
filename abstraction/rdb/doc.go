// Package rdb registers a RocksDB storage engine for abstraction tables
// under the name "rocksdb".
//
// RocksDB requires cgo and the native library, so the engine is only
// compiled with the "rocksdb" build tag. Importing this package without
// the tag is a no-op.
package rdb
