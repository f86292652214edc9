// Package minio implements blobstore.Store with the MinIO client, which
// talks to MinIO and other S3-compatible services (Ceph, Garage, SeaweedFS)
// without pulling in the AWS SDK.
//
//	store, err := minio.Dial(minio.Endpoint{
//	    Address:   "localhost:9000",
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	}, "samples", "corpus/")
package minio
