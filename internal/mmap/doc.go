// Package mmap maps snapshot files read-only into memory.
//
// A Mapping is safe for concurrent reads. Close is idempotent; the slice
// returned by Bytes must not be used after Close.
//
// On Unix the mapping uses mmap(2) and honours madvise(2) hints. On Windows
// it uses a file-mapping view and Advise is a no-op.
package mmap
