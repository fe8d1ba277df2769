package followup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mentorhub/crm-followup/pkg/logging"
)

// S3API is the subset of the S3 client used by Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver exports a day's follow-up logs to S3 as JSONL for long-term audit
// retention. If bucket is empty, all operations are no-ops.
type Archiver struct {
	bucket   string
	s3Client S3API
	logs     *LogStore
	logger   *logging.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(s3Client S3API, bucket string, logs *LogStore, logger *logging.Logger) *Archiver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archiver{bucket: bucket, s3Client: s3Client, logs: logs, logger: logger}
}

// Enabled returns true if archival is configured (bucket is set).
func (a *Archiver) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// ArchiveDay writes every log entry of the given calendar day as one JSONL
// object. Re-archiving a day overwrites the previous object, so the call is
// safe to repeat.
func (a *Archiver) ArchiveDay(ctx context.Context, orgID string, day time.Time) error {
	if !a.Enabled() {
		return nil
	}

	from := startOfDay(day)
	to := from.AddDate(0, 0, 1)
	entries, err := a.logs.ListBetween(ctx, orgID, from, to)
	if err != nil {
		return fmt.Errorf("followup: archive list: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("followup: archive encode: %w", err)
		}
	}

	key := fmt.Sprintf("followup-logs/v1/%s/by-date/%d/%02d/%02d.jsonl",
		orgID, from.Year(), from.Month(), from.Day())
	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/jsonl"),
	})
	if err != nil {
		return fmt.Errorf("followup: archive s3 put %s: %w", key, err)
	}

	a.logger.Info("followup: day archived", "org_id", orgID, "key", key, "entries", len(entries))
	return nil
}
