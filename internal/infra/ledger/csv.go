// Where: internal/infra/ledger/csv.go
// What: CSV ledger kept as a single object in the invoice bucket.
// Why: Accounting reads the correction/deletion request form as an Excel-friendly CSV.
package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/poruru-code/invoice-autorecord/internal/domain/invoice"
)

// Column headers of the ledger file. The first eight are the form's fields;
// the last one carries the idempotency key.
const (
	ColApplicationDate = "申請日"
	ColSlipNumber      = "取引伝票番号"
	ColSubject         = "取引件名"
	ColCounterparty    = "取引先名"
	ColCorrectionDate  = "訂正・削除日付"
	ColCorrection      = "訂正・削除内容"
	ColReason          = "訂正・削除理由"
	ColProcessor       = "処理担当者名"
	ColSourceKey       = "オブジェクトキー"
)

// Fixed column values for automatically recorded uploads.
const (
	CorrectionText = "電子取引データの新規保存または更新"
	ReasonText     = "正規業務フローに基づくアップロード"
)

// Columns lists the header in file order.
var Columns = []string{
	ColApplicationDate,
	ColSlipNumber,
	ColSubject,
	ColCounterparty,
	ColCorrectionDate,
	ColCorrection,
	ColReason,
	ColProcessor,
	ColSourceKey,
}

const utf8BOM = "\ufeff"

// ErrConflict is returned when concurrent writers kept winning the race.
var ErrConflict = errors.New("ledger write conflict")

// CSVS3API is the subset of the S3 client used by the CSV ledger.
type CSVS3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ CSVS3API = (*s3.Client)(nil)

// CSV appends rows to one CSV object with optimistic concurrency: the write
// is conditional on the ETag that was read, and retried when it lost a race.
type CSV struct {
	Client      CSVS3API
	Bucket      string
	Key         string
	Location    *time.Location
	MaxAttempts int
	Backoff     time.Duration
}

// NewCSV returns a CSV ledger stored at bucket/key. Dates are written in JST.
func NewCSV(client CSVS3API, bucket, key string) *CSV {
	return &CSV{
		Client:      client,
		Bucket:      bucket,
		Key:         key,
		Location:    time.FixedZone("JST", 9*60*60),
		MaxAttempts: 5,
		Backoff:     50 * time.Millisecond,
	}
}

// Upsert implements Store.
func (c *CSV) Upsert(ctx context.Context, record invoice.Record) (Outcome, error) {
	if c == nil || c.Client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		rows, etag, err := c.load(ctx)
		if err != nil {
			return "", err
		}
		if containsRecord(rows, record) {
			return OutcomeExisting, nil
		}
		rows = append(rows, c.row(record))
		err = c.store(ctx, rows, etag)
		if err == nil {
			return OutcomeCreated, nil
		}
		if !isPreconditionFailure(err) {
			return "", err
		}
		if err := sleepContext(ctx, c.Backoff*time.Duration(attempt)); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrConflict, c.Key, attempts)
}

// List implements Lister.
func (c *CSV) List(ctx context.Context) ([]invoice.Record, error) {
	rows, _, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]invoice.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, invoice.Record{
			InvoiceID: strings.TrimSuffix(row[ColSlipNumber], path.Ext(row[ColSlipNumber])),
			SourceKey: row[ColSourceKey],
			Bucket:    c.Bucket,
			Vendor:    row[ColCounterparty],
			Memo:      row[ColSubject],
			Processor: row[ColProcessor],
		})
	}
	return out, nil
}

// load returns the existing rows and the ETag they were read at. A missing
// ledger yields no rows and an empty ETag.
func (c *CSV) load(ctx context.Context) ([]map[string]string, string, error) {
	resp, err := c.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(c.Key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("read ledger %s: %w", c.Key, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read ledger %s: %w", c.Key, err)
	}
	rows, err := DecodeCSV(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode ledger %s: %w", c.Key, err)
	}
	return rows, aws.ToString(resp.ETag), nil
}

func (c *CSV) store(ctx context.Context, rows []map[string]string, etag string) error {
	payload, err := EncodeCSV(rows)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(c.Key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("text/csv; charset=utf-8"),
	}
	if etag == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(etag)
	}
	if _, err := c.Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("write ledger %s: %w", c.Key, err)
	}
	return nil
}

func (c *CSV) row(r invoice.Record) map[string]string {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	day := r.RecordedAt.In(loc).Format("2006/01/02")
	return map[string]string{
		ColApplicationDate: day,
		ColSlipNumber:      path.Base(r.SourceKey),
		ColSubject:         r.Subject(),
		ColCounterparty:    r.Vendor,
		ColCorrectionDate:  day,
		ColCorrection:      CorrectionText,
		ColReason:          ReasonText,
		ColProcessor:       r.Processor,
		ColSourceKey:       r.SourceKey,
	}
}

// containsRecord matches on the source key column. Rows written before that
// column existed are matched on the slip number (the file name) instead.
func containsRecord(rows []map[string]string, r invoice.Record) bool {
	name := path.Base(r.SourceKey)
	for _, row := range rows {
		if key, ok := row[ColSourceKey]; ok && key != "" {
			if key == r.SourceKey {
				return true
			}
			continue
		}
		if row[ColSlipNumber] == name {
			return true
		}
	}
	return false
}

// DecodeCSV parses a ledger file, tolerating a UTF-8 BOM and legacy files
// without the source key column.
func DecodeCSV(payload []byte) ([]map[string]string, error) {
	text := strings.TrimPrefix(string(payload), utf8BOM)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := map[string]string{}
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// EncodeCSV writes the header and rows with a UTF-8 BOM so Excel detects the
// encoding.
func EncodeCSV(rows []map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	writer := csv.NewWriter(&buf)
	if err := writer.Write(Columns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		line := make([]string, len(Columns))
		for i, name := range Columns {
			line[i] = row[name]
		}
		if err := writer.Write(line); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
