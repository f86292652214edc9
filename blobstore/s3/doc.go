// Package s3 implements blobstore.Store on Amazon S3.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "training/")
//
// Samples are read with ranged GETs. Trained configs are written with a
// single PutObject, or through the transfer manager when the store is
// created WithUploader. Listing follows continuation tokens.
//
// DDBCommitStore wraps a Store and keeps the blobstore.CurrentName pointer in
// DynamoDB, which gives concurrent trainers an atomic compare-and-swap.
package s3
