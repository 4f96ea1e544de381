package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/nearlsh/blobstore"
)

// ErrConcurrentModification is returned by Put of CURRENT when another
// writer committed the same sequence number first.
var ErrConcurrentModification = errors.New("s3: concurrent snapshot commit")

// DDBClient is the part of the DynamoDB API a DDBCommitStore calls.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Commit is one entry of the CURRENT history.
type Commit struct {
	Seq       uint64
	Snapshot  string
	Committed time.Time
}

// DDBCommitStore wraps a Store and keeps the CURRENT pointer in a
// DynamoDB table instead of S3. Each snapshot commit appends a row with
// the next sequence number under a conditional write, so of two racing
// writers only one wins.
//
// The table uses "store" (S) as partition key and "seq" (N) as sort key:
//
//	aws dynamodb create-table --table-name nearlsh-commits \
//	  --attribute-definitions AttributeName=store,AttributeType=S AttributeName=seq,AttributeType=N \
//	  --key-schema AttributeName=store,KeyType=HASH AttributeName=seq,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	*Store
	ddb   DDBClient
	table string
	key   string
	now   func() time.Time
}

// NewDDBCommitStore returns a commit store over objects. storeKey names
// the partition, usually the s3:// URI of objects.
func NewDDBCommitStore(objects *Store, ddb DDBClient, table, storeKey string) *DDBCommitStore {
	return &DDBCommitStore{Store: objects, ddb: ddb, table: table, key: storeKey, now: time.Now}
}

// Open serves CURRENT from the newest commit and everything else from S3.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != blobstore.CurrentName {
		return s.Store.Open(ctx, name)
	}
	commits, err := s.History(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, blobstore.ErrNotFound
	}
	return blobstore.NewBytesBlob([]byte(commits[0].Snapshot)), nil
}

// Put commits CURRENT to DynamoDB and writes everything else to S3.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name != blobstore.CurrentName {
		return s.Store.Put(ctx, name, data)
	}
	commits, err := s.History(ctx, 1)
	if err != nil {
		return err
	}
	var seq uint64 = 1
	if len(commits) > 0 {
		seq = commits[0].Seq + 1
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"store":        &types.AttributeValueMemberS{Value: s.key},
			"seq":          &types.AttributeValueMemberN{Value: strconv.FormatUint(seq, 10)},
			"snapshot":     &types.AttributeValueMemberS{Value: string(data)},
			"committed_at": &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_not_exists(seq)"),
	})
	var conflict *types.ConditionalCheckFailedException
	switch {
	case errors.As(err, &conflict):
		return ErrConcurrentModification
	case err != nil:
		return fmt.Errorf("s3: commit %d to %s: %w", seq, s.table, err)
	}
	return nil
}

// Delete never removes commits; deleting CURRENT is a no-op.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	if name == blobstore.CurrentName {
		return nil
	}
	return s.Store.Delete(ctx, name)
}

// History returns up to limit commits, newest first. A limit of zero
// returns the whole history.
func (s *DDBCommitStore) History(ctx context.Context, limit int) ([]Commit, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("#store = :store"),
		ExpressionAttributeNames: map[string]string{
			"#store": "store",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":store": &types.AttributeValueMemberS{Value: s.key},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	var commits []Commit
	for {
		out, err := s.ddb.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("s3: query %s: %w", s.table, err)
		}
		for _, item := range out.Items {
			c, err := decodeCommit(item)
			if err != nil {
				return nil, err
			}
			commits = append(commits, c)
		}
		if len(out.LastEvaluatedKey) == 0 || (limit > 0 && len(commits) >= limit) {
			return commits, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func decodeCommit(item map[string]types.AttributeValue) (Commit, error) {
	seq, ok := item["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return Commit{}, errors.New("s3: commit row without seq")
	}
	snap, ok := item["snapshot"].(*types.AttributeValueMemberS)
	if !ok {
		return Commit{}, errors.New("s3: commit row without snapshot")
	}
	n, err := strconv.ParseUint(seq.Value, 10, 64)
	if err != nil {
		return Commit{}, fmt.Errorf("s3: commit seq %q: %w", seq.Value, err)
	}
	c := Commit{Seq: n, Snapshot: snap.Value}
	if at, ok := item["committed_at"].(*types.AttributeValueMemberS); ok {
		c.Committed, _ = time.Parse(time.RFC3339Nano, at.Value)
	}
	return c, nil
}
