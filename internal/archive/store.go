// Package archive keeps a copy of messages the pipeline rejected as
// operational failures. Those messages are never retried, so the archive is
// the only place they can be inspected later.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/medical-appointments/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// RejectedMessage is a message dropped after an operational failure.
type RejectedMessage struct {
	Source       string            `json:"source"`
	MessageID    string            `json:"messageId"`
	Body         string            `json:"body"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	ErrorCode    string            `json:"errorCode"`
	ErrorMessage string            `json:"errorMessage"`
	RejectedAt   time.Time         `json:"rejectedAt"`
}

// ManifestEntry is one line of the daily rejection manifest.
type ManifestEntry struct {
	Source     string `json:"source"`
	MessageID  string `json:"messageId"`
	S3Key      string `json:"s3Key"`
	ErrorCode  string `json:"errorCode"`
	RejectedAt string `json:"rejectedAt"`
}

// Store writes rejected messages to S3. It is safe for concurrent use.
type Store struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger

	// manifestMu serializes manifest read-modify-write cycles.
	manifestMu sync.Mutex
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// ArchiveRejected writes the message as JSON and appends it to the manifest.
func (s *Store) ArchiveRejected(ctx context.Context, msg RejectedMessage) error {
	if !s.Enabled() {
		return nil
	}
	if msg.RejectedAt.IsZero() {
		msg.RejectedAt = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("archive: marshal rejected message: %w", err)
	}

	day := msg.RejectedAt
	key := fmt.Sprintf("rejected/v1/%s/%d/%02d/%02d/%s.json",
		msg.Source, day.Year(), day.Month(), day.Day(), msg.MessageID)

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived rejected message",
		"source", msg.Source,
		"message_id", msg.MessageID,
		"error_code", msg.ErrorCode,
		"s3_key", key,
	)

	entry := ManifestEntry{
		Source:     msg.Source,
		MessageID:  msg.MessageID,
		S3Key:      key,
		ErrorCode:  msg.ErrorCode,
		RejectedAt: msg.RejectedAt.Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, day, entry); err != nil {
		s.logger.Warn("failed to append rejection manifest", "error", err, "message_id", msg.MessageID)
	}
	return nil
}

// appendManifest adds a JSONL line to the daily manifest. S3 has no append,
// so this is read-modify-write; appends from one Store are serialized. Two
// processes writing the same day's manifest can still drop lines.
func (s *Store) appendManifest(ctx context.Context, day time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	s.manifestMu.Lock()
	defer s.manifestMu.Unlock()
	manifestKey := fmt.Sprintf("rejected/v1/manifests/%d-%02d-%02d.jsonl", day.Year(), day.Month(), day.Day())

	var existing []byte
	getResp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(manifestKey),
	})
	switch {
	case err == nil:
		existing, _ = io.ReadAll(getResp.Body)
		_ = getResp.Body.Close()
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", manifestKey)
	default:
		return fmt.Errorf("archive: s3 get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(manifestKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	return errors.As(err, &nsk)
}
