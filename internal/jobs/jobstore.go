package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/safehug/pkg/logging"
)

const jobTTL = 24 * time.Hour

// Status is the lifecycle of an analysis job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("jobs: job not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Record is the persisted state of a queued analysis.
type Record struct {
	JobID        string `dynamodbav:"jobId" json:"jobId"`
	Status       Status `dynamodbav:"status" json:"status"`
	UploadID     string `dynamodbav:"uploadId" json:"uploadId"`
	UserID       string `dynamodbav:"userId,omitempty" json:"userId,omitempty"`
	AnalysisID   string `dynamodbav:"analysisId,omitempty" json:"analysisId,omitempty"`
	ErrorMessage string `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt    string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    string `dynamodbav:"updatedAt" json:"updatedAt"`
	ExpiresAt    int64  `dynamodbav:"expiresAt,omitempty" json:"-"`
}

type Recorder interface {
	PutPending(ctx context.Context, job *Record) error
	GetJob(ctx context.Context, jobID string) (*Record, error)
}

type Updater interface {
	MarkCompleted(ctx context.Context, jobID, analysisID string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
}

// Store is both halves of the job lifecycle.
type Store interface {
	Recorder
	Updater
}

// DynamoStore persists job records to DynamoDB with a TTL attribute.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("jobs: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("jobs: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{client: client, tableName: tableName, logger: logger}
}

// PutPending inserts a new pending job record.
func (s *DynamoStore) PutPending(ctx context.Context, job *Record) error {
	if job == nil {
		return errors.New("jobs: job cannot be nil")
	}
	stampPending(job, time.Now().UTC())

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("jobs: failed to marshal job: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("jobs: failed to persist job: %w", err)
	}
	return nil
}

func (s *DynamoStore) MarkCompleted(ctx context.Context, jobID, analysisID string) error {
	if jobID == "" {
		return errors.New("jobs: jobID required")
	}
	return s.updateJob(ctx, jobID,
		map[string]types.AttributeValue{
			":status":   &types.AttributeValueMemberS{Value: string(StatusCompleted)},
			":analysis": &types.AttributeValueMemberS{Value: analysisID},
			":error":    &types.AttributeValueMemberS{Value: ""},
			":updated":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		"SET #status = :status, analysisId = :analysis, #error = :error, #updated = :updated",
	)
}

func (s *DynamoStore) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	if jobID == "" {
		return errors.New("jobs: jobID required")
	}
	return s.updateJob(ctx, jobID,
		map[string]types.AttributeValue{
			":status":  &types.AttributeValueMemberS{Value: string(StatusFailed)},
			":error":   &types.AttributeValueMemberS{Value: errMsg},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		"SET #status = :status, #error = :error, #updated = :updated",
	)
}

func (s *DynamoStore) GetJob(ctx context.Context, jobID string) (*Record, error) {
	if jobID == "" {
		return nil, errors.New("jobs: jobID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jobs: failed to fetch job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}
	var job Record
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("jobs: failed to decode job: %w", err)
	}
	return &job, nil
}

func (s *DynamoStore) updateJob(ctx context.Context, jobID string, values map[string]types.AttributeValue, expression string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression: aws.String(expression),
		// status and updatedAt are DynamoDB reserved words
		ExpressionAttributeNames: map[string]string{
			"#status":  "status",
			"#error":   "errorMessage",
			"#updated": "updatedAt",
		},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("jobs: failed to update job %s: %w", jobID, err)
	}
	return nil
}

func stampPending(job *Record, now time.Time) {
	job.Status = StatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}
}

// MemoryStore keeps job records in process, for USE_MEMORY_QUEUE runs.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Record
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Record)}
}

func (s *MemoryStore) PutPending(_ context.Context, job *Record) error {
	if job == nil {
		return errors.New("jobs: job cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.JobID]; ok {
		return fmt.Errorf("jobs: job %s already exists", job.JobID)
	}
	stampPending(job, time.Now().UTC())
	s.jobs[job.JobID] = *job
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return &job, nil
}

func (s *MemoryStore) MarkCompleted(_ context.Context, jobID, analysisID string) error {
	return s.update(jobID, func(r *Record) {
		r.Status = StatusCompleted
		r.AnalysisID = analysisID
		r.ErrorMessage = ""
	})
}

func (s *MemoryStore) MarkFailed(_ context.Context, jobID, errMsg string) error {
	return s.update(jobID, func(r *Record) {
		r.Status = StatusFailed
		r.ErrorMessage = errMsg
	})
}

func (s *MemoryStore) update(jobID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	fn(&job)
	job.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	s.jobs[jobID] = job
	return nil
}
