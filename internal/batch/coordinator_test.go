package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/archive"
	"github.com/wolfman30/medical-appointments/internal/observability/metrics"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

func messages(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Message{ID: fmt.Sprintf("m-%d", i), Body: fmt.Sprintf("body-%d", i)}
	}
	return msgs
}

type recordingArchive struct {
	mu       sync.Mutex
	rejected []archive.RejectedMessage
}

func (a *recordingArchive) ArchiveRejected(ctx context.Context, msg archive.RejectedMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejected = append(a.rejected, msg)
	return nil
}

func TestProcessAllSucceed(t *testing.T) {
	var calls atomic.Int32
	c := New("test", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		calls.Add(1)
		return nil
	}, logging.New("error"))

	res := c.Process(context.Background(), messages(5))
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 5, res.Succeeded)
	assert.Empty(t, res.Failures)
	assert.NoError(t, res.Err())
}

func TestProcessEmptyBatch(t *testing.T) {
	c := New("test", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		t.Fatal("handler must not run")
		return nil
	}, logging.New("error"))

	res := c.Process(context.Background(), nil)
	assert.Equal(t, 0, res.Total)
	assert.NoError(t, res.Err())
}

func TestProcessDoesNotShortCircuit(t *testing.T) {
	var calls atomic.Int32
	c := New("test", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		calls.Add(1)
		switch msg.ID {
		case "m-1":
			return apperr.MissingFields("insuredId")
		case "m-3":
			return errors.New("connection refused")
		}
		time.Sleep(5 * time.Millisecond)
		return nil
	}, logging.New("error"))

	res := c.Process(context.Background(), messages(5))
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 3, res.Succeeded)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "m-1", res.Failures[0].MessageID)
	assert.False(t, res.Failures[0].Critical)
	assert.Equal(t, "m-3", res.Failures[1].MessageID)
	assert.True(t, res.Failures[1].Critical)

	err := res.Err()
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 2, batchErr.Failed)
	assert.Equal(t, 5, batchErr.Total)
	assert.Equal(t, "batch processing failed: 2/5 records failed", err.Error())

	assert.Equal(t, []string{"m-3"}, res.RetryableIDs())
}

func TestProcessRecoversPanics(t *testing.T) {
	c := New("test", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		if msg.ID == "m-0" {
			panic("nil map")
		}
		return nil
	}, logging.New("error"))

	res := c.Process(context.Background(), messages(2))
	require.Len(t, res.Failures, 1)
	assert.True(t, res.Failures[0].Critical)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(res.Failures[0].Err))
	assert.Equal(t, 1, res.Succeeded)
}

func TestProcessRespectsConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32
	c := New("test", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	}, logging.New("error"), WithConcurrency(2))

	res := c.Process(context.Background(), messages(6))
	assert.Equal(t, 6, res.Succeeded)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcessLogsByClassification(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "debug")
	c := New("test", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		if msg.ID == "m-0" {
			return apperr.InvalidCountryCode("AR")
		}
		return apperr.Timeout("save", context.DeadlineExceeded)
	}, logger)

	c.Process(context.Background(), messages(2))
	out := buf.String()
	assert.Contains(t, out, `"level":"WARN","msg":"record rejected"`)
	assert.Contains(t, out, `"level":"ERROR","msg":"record failed"`)
	assert.True(t, strings.Contains(out, `"message_id":"m-0"`))
	assert.Contains(t, out, `"error_code":"TIMEOUT"`)
}

func TestProcessArchivesOperationalRejections(t *testing.T) {
	arch := &recordingArchive{}
	c := New("processor-PE", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		if msg.ID == "m-0" {
			return apperr.InvalidInsuredID("12")
		}
		return errors.New("db down")
	}, logging.New("error"), WithRejectArchive(arch))

	c.Process(context.Background(), messages(2))
	require.Len(t, arch.rejected, 1)
	assert.Equal(t, "m-0", arch.rejected[0].MessageID)
	assert.Equal(t, "processor-PE", arch.rejected[0].Source)
	assert.Equal(t, apperr.CodeInvalidInsuredID, arch.rejected[0].ErrorCode)
	assert.Equal(t, "body-0", arch.rejected[0].Body)
}

// slowS3 is a concurrency-safe in-memory bucket whose reads lag, widening
// the window between a manifest read and its write.
type slowS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *slowS3) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(input.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (s *slowS3) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[*input.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(append([]byte(nil), data...)))}, nil
}

func TestProcessManifestKeepsEveryRejection(t *testing.T) {
	bucket := &slowS3{objects: map[string][]byte{}}
	store := archive.NewStore(bucket, "rejects", logging.New("error"))
	c := New("processor-CL", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		return apperr.MissingFields("scheduleId")
	}, logging.New("error"), WithRejectArchive(store))

	res := c.Process(context.Background(), messages(10))
	require.Len(t, res.Failures, 10)

	var manifest []byte
	var archived int
	for key, body := range bucket.objects {
		if strings.HasPrefix(key, "rejected/v1/manifests/") {
			manifest = body
		} else {
			archived++
		}
	}
	assert.Equal(t, 10, archived)
	lines := strings.Split(strings.TrimSpace(string(manifest)), "\n")
	assert.Len(t, lines, 10)
}

func TestProcessRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPipelineMetrics(reg)
	c := New("completion", func(ctx context.Context, msg Message, logger *logging.Logger) error {
		if msg.ID == "m-2" {
			return apperr.AppointmentNotFound("x")
		}
		return nil
	}, logging.New("error"), WithMetrics(m))

	c.Process(context.Background(), messages(3))
	batches, err := testutil.GatherAndCount(reg, "appointments_pipeline_batches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, batches)
	records, err := testutil.GatherAndCount(reg, "appointments_pipeline_records_total")
	require.NoError(t, err)
	assert.Equal(t, 2, records)
}
