// Package blobstore abstracts where training samples are read from and where
// trained clustering configs are published.
//
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on disk, read through mmap
//   - MemoryStore: an in-process map, used by tests
//   - s3.Store and s3.DDBCommitStore: Amazon S3, optionally with a DynamoDB
//     commit log for the CURRENT pointer
//   - minio.Store: any S3-compatible endpoint through minio-go
//
// # Custom Implementations
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Blobs that can expose their bytes without a copy should also implement
// Mappable; ReadAll uses it when present.
package blobstore
