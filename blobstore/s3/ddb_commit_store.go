package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/hupe1980/colcluster/blobstore"
)

// DDBCommitStore implements blobstore.Store backed by S3, with DynamoDB as
// the commit log for the blobstore.CurrentName pointer.
//
// Artifacts are written to S3. Every Put of CurrentName appends version n+1
// with a conditional write, so two trainers publishing at once can never
// overwrite each other's history. A writer that loses the race re-reads the
// latest version and retries.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 prefix/path
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name colcluster-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	s3Store     *Store
	ddbClient   DDBClient
	tableName   string
	baseURI     string
	maxAttempts uint64
	newBackOff  func() backoff.BackOff
}

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ErrConcurrentModification is returned when a concurrent commit wins every
// attempt.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// CommitOption configures a DDBCommitStore.
type CommitOption func(*DDBCommitStore)

// WithCommitAttempts bounds how often a conflicting commit is retried.
// One attempt disables retries.
func WithCommitAttempts(n int) CommitOption {
	return func(s *DDBCommitStore) {
		if n > 0 {
			s.maxAttempts = uint64(n)
		}
	}
}

// WithCommitBackOff replaces the exponential backoff between attempts.
func WithCommitBackOff(fn func() backoff.BackOff) CommitOption {
	return func(s *DDBCommitStore) {
		s.newBackOff = fn
	}
}

// NewDDBCommitStore creates a new S3+DynamoDB commit store. The store's URI
// is used as partition key.
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName string, opts ...CommitOption) *DDBCommitStore {
	s := &DDBCommitStore{
		s3Store:     s3Store,
		ddbClient:   ddbClient,
		tableName:   tableName,
		baseURI:     s3Store.URI(),
		maxAttempts: 5,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open reads CurrentName from DynamoDB and everything else from S3.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == blobstore.CurrentName {
		c, err := s.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if c.Version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &pointerBlob{content: []byte(c.Artifact)}, nil
	}
	return s.s3Store.Open(ctx, name)
}

// Put writes a blob. CurrentName is committed to DynamoDB instead of S3.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == blobstore.CurrentName {
		_, err := s.Commit(ctx, string(data))
		return err
	}
	return s.s3Store.Put(ctx, name, data)
}

// Delete deletes a blob.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.s3Store.Delete(ctx, name)
}

// List lists blobs with prefix.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.s3Store.List(ctx, prefix)
}

// Commit is one entry of the commit log.
type Commit struct {
	Version  uint64
	Artifact string
}

// Latest returns the newest commit, or a zero Commit if there is none.
func (s *DDBCommitStore) Latest(ctx context.Context) (Commit, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return Commit{}, fmt.Errorf("failed to query DynamoDB: %w", err)
	}
	if len(resp.Items) == 0 {
		return Commit{}, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return Commit{}, errors.New("invalid version attribute in DynamoDB")
	}
	artifactAttr, ok := item["artifact"].(*types.AttributeValueMemberS)
	if !ok {
		return Commit{}, errors.New("invalid artifact attribute in DynamoDB")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return Commit{}, fmt.Errorf("failed to parse version: %w", err)
	}
	return Commit{Version: version, Artifact: artifactAttr.Value}, nil
}

// Commit appends artifact as the next version, retrying on conflicts.
func (s *DDBCommitStore) Commit(ctx context.Context, artifact string) (Commit, error) {
	var committed Commit

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		c, err := s.tryCommit(ctx, artifact)
		if err != nil {
			if errors.Is(err, ErrConcurrentModification) {
				return err
			}
			return backoff.Permanent(err)
		}
		committed = c
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxAttempts-1), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return Commit{}, err
	}
	return committed, nil
}

func (s *DDBCommitStore) tryCommit(ctx context.Context, artifact string) (Commit, error) {
	latest, err := s.Latest(ctx)
	if err != nil {
		return Commit{}, err
	}
	next := Commit{Version: latest.Version + 1, Artifact: artifact}

	_, err = s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":  &types.AttributeValueMemberS{Value: s.baseURI},
			"version":   &types.AttributeValueMemberN{Value: strconv.FormatUint(next.Version, 10)},
			"artifact":  &types.AttributeValueMemberS{Value: artifact},
			"committed": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return Commit{}, ErrConcurrentModification
		}
		return Commit{}, fmt.Errorf("failed to commit version to DynamoDB: %w", err)
	}
	return next, nil
}

// pointerBlob serves the CurrentName content from memory.
type pointerBlob struct {
	content []byte
}

func (b *pointerBlob) Close() error {
	return nil
}

func (b *pointerBlob) Size() int64 {
	return int64(len(b.content))
}

func (b *pointerBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *pointerBlob) Bytes() ([]byte, error) {
	return b.content, nil
}
