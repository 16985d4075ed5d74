// Package s3 stores volume snapshots in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("volumes/lab/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	err = vol.Checkpoint(ctx, store)
//
// Large snapshots are streamed through the multipart uploader; small blobs
// go through a single PutObject with a CRC32C checksum. DDBCommitStore
// adds a DynamoDB-backed CURRENT pointer so concurrent writers cannot lose
// each other's commits.
package s3
