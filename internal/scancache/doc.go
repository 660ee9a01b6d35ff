// Package scancache persists classifications in SQLite so unchanged files
// are not re-probed. Entries are keyed by file path, size, modification time,
// and the classification inputs (filename hint, reference runtime, and
// classifier options).
package scancache
