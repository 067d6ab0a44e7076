package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/safehug/pkg/logging"
)

// TranscriptPrefix is where uploaded chat exports live in the bucket.
const TranscriptPrefix = "chat-files/"

var (
	ErrStoreDisabled = errors.New("storage: transcript store not configured")
	ErrNotFound      = errors.New("storage: object not found")
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store keeps transcripts and archived reports in one bucket.
type Store struct {
	bucket        string
	archivePrefix string
	s3Client      S3API
	logger        *logging.Logger
	now           func() time.Time
}

// NewStore creates a Store. With an empty bucket every call returns ErrStoreDisabled.
func NewStore(s3Client S3API, bucket, archivePrefix string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	if archivePrefix == "" {
		archivePrefix = "reports/v1"
	}
	return &Store{
		bucket:        bucket,
		archivePrefix: strings.TrimRight(archivePrefix, "/"),
		s3Client:      s3Client,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Enabled returns true if a bucket and client are configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

func (s *Store) Bucket() string {
	if s == nil {
		return ""
	}
	return s.bucket
}

// TranscriptKey builds the object key for a new upload.
func TranscriptKey(uploadID, filename string) string {
	name := strings.TrimSpace(filename)
	if name == "" {
		name = "chat.txt"
	}
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return TranscriptPrefix + uploadID + "_" + name
}

// NormalizeKey accepts either a bare key or an S3 object URL and returns the key.
func NormalizeKey(ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "s3://") {
		if _, key, ok := strings.Cut(strings.TrimPrefix(ref, "s3://"), "/"); ok {
			return key
		}
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		u, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		key := strings.TrimPrefix(u.Path, "/")
		if idx := strings.Index(key, TranscriptPrefix); idx >= 0 {
			key = key[idx:]
		}
		if unescaped, err := url.PathUnescape(key); err == nil {
			key = unescaped
		}
		return key
	}
	return strings.TrimPrefix(ref, "/")
}

// PutTranscript uploads raw transcript text.
func (s *Store) PutTranscript(ctx context.Context, key, body string) error {
	if !s.Enabled() {
		return ErrStoreDisabled
	}
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 put %s: %w", key, err)
	}
	s.logger.Info("stored transcript", "s3_key", key, "bytes", len(body))
	return nil
}

// GetTranscript downloads transcript text by key or object URL.
func (s *Store) GetTranscript(ctx context.Context, ref string) (string, error) {
	if !s.Enabled() {
		return "", ErrStoreDisabled
	}
	key := NormalizeKey(ref)
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("storage: s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("storage: read %s: %w", key, err)
	}
	return string(raw), nil
}

// DeleteTranscript removes an uploaded transcript. Missing objects are not an error.
func (s *Store) DeleteTranscript(ctx context.Context, ref string) error {
	if !s.Enabled() {
		return ErrStoreDisabled
	}
	key := NormalizeKey(ref)
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("storage: s3 delete %s: %w", key, err)
	}
	return nil
}

// ArchiveReport writes a report as JSON under a by-date key and returns the key.
// A disabled store is a no-op.
func (s *Store) ArchiveReport(ctx context.Context, analysisID string, report any) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("storage: marshal report: %w", err)
	}

	now := s.now()
	key := fmt.Sprintf("%s/by-date/%d/%02d/%02d/%s.json", s.archivePrefix, now.Year(), now.Month(), now.Day(), analysisID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("storage: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived analysis report", "analysis_id", analysisID, "s3_key", key)
	return key, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}
