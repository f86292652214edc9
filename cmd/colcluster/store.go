package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/urfave/cli/v2"

	"github.com/hupe1980/colcluster/blobstore"
	"github.com/hupe1980/colcluster/blobstore/minio"
	"github.com/hupe1980/colcluster/blobstore/s3"
)

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "samples",
			Aliases:  []string{"s"},
			Usage:    "sample location: a directory, s3://bucket/prefix or minio://host:port/bucket/prefix",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "only use samples whose name starts with `PREFIX`",
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "region of the S3 or MinIO bucket",
			EnvVars: []string{"AWS_REGION"},
		},
		&cli.StringFlag{
			Name:  "ddb-table",
			Usage: "DynamoDB table holding the CURRENT pointer of an s3:// store",
		},
		&cli.StringFlag{
			Name:    "minio-access-key",
			EnvVars: []string{"MINIO_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "minio-secret-key",
			EnvVars: []string{"MINIO_SECRET_KEY"},
		},
		&cli.BoolFlag{
			Name:  "minio-insecure",
			Usage: "talk plain HTTP to MinIO",
		},
	}
}

// openStore resolves the --samples location.
func openStore(ctx context.Context, c *cli.Context) (blobstore.Store, error) {
	loc := c.String("samples")
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		if err == nil && u.Scheme == "file" {
			loc = u.Path
		}
		return blobstore.NewLocalStore(loc), nil
	}

	switch u.Scheme {
	case "s3":
		return openS3(ctx, c, u.Host, strings.TrimPrefix(u.Path, "/"))
	case "minio":
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("bad value for --samples %q: missing bucket", loc)
		}
		return minio.Dial(minio.Endpoint{
			Address:   u.Host,
			AccessKey: c.String("minio-access-key"),
			SecretKey: c.String("minio-secret-key"),
			Region:    c.String("region"),
			Secure:    !c.Bool("minio-insecure"),
		}, bucket, prefix)
	default:
		return nil, fmt.Errorf("bad value for --samples %q: unsupported scheme %q", loc, u.Scheme)
	}
}

func openS3(ctx context.Context, c *cli.Context, bucket, prefix string) (blobstore.Store, error) {
	var opts []func(*config.LoadOptions) error
	if region := c.String("region"); region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := awss3.NewFromConfig(cfg)
	store := s3.NewStore(client, bucket, prefix, s3.WithUploader(client, s3.DefaultUploadConfig()))
	if table := c.String("ddb-table"); table != "" {
		return s3.NewDDBCommitStore(store, dynamodb.NewFromConfig(cfg), table), nil
	}
	return store, nil
}
