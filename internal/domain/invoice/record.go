// Where: internal/domain/invoice/record.go
// What: Ledger record and PDF content checks.
// Why: One record per source object key is the idempotency unit of the ledger.
package invoice

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// pdfMagic must appear within the first kilobyte of a PDF file.
var pdfMagic = []byte("%PDF-")

// HeaderWindow is how many leading bytes are inspected for the PDF header.
const HeaderWindow = 1024

// Record is one ledger entry. SourceKey is the idempotency key.
type Record struct {
	InvoiceID  string
	SourceKey  string
	Bucket     string
	Vendor     string
	Amount     int64
	Date       string
	Memo       string
	ETag       string
	RecordedAt time.Time
	Processor  string
}

// NewRecord builds the ledger record for an object.
func NewRecord(bucket, key string, parsed Parsed, etag string, now time.Time, processor string) Record {
	return Record{
		InvoiceID:  InvoiceID(key),
		SourceKey:  key,
		Bucket:     bucket,
		Vendor:     parsed.Vendor,
		Amount:     parsed.Amount,
		Date:       parsed.Date,
		Memo:       parsed.Memo,
		ETag:       strings.Trim(etag, `"`),
		RecordedAt: now.UTC(),
		Processor:  processor,
	}
}

// InvoiceID derives the invoice identifier from the object key: the file name
// without its extension.
func InvoiceID(key string) string {
	name := path.Base(key)
	return strings.TrimSuffix(name, path.Ext(name))
}

// Subject renders the transaction subject column.
func (r Record) Subject() string {
	return fmt.Sprintf("%s (金額:%s円)", r.Memo, strconv.FormatInt(r.Amount, 10))
}

// CheckPDF verifies the leading bytes of an object look like a PDF.
func CheckPDF(head []byte) error {
	if len(head) > HeaderWindow {
		head = head[:HeaderWindow]
	}
	if !bytes.Contains(head, pdfMagic) {
		return fmt.Errorf("missing %q header", pdfMagic)
	}
	return nil
}
