// Package blobstore abstracts where volume snapshots live.
//
// A BlobStore holds named, immutable blobs. Implementations must be safe
// for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: local directory, mmap reads, atomic rename on write
//   - ThrottledStore: rate-limits the bytes moved through another store
//   - s3.Store, s3.DDBCommitStore: Amazon S3, optionally with a DynamoDB
//     commit pointer
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Writes become visible only when they complete: a reader never observes a
// partially written blob under its final name.
package blobstore
