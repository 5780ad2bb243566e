// Where: internal/infra/ledger/dynamodb.go
// What: DynamoDB-backed ledger store.
// Why: A conditional PutItem gives an atomic insert-if-absent keyed by source object.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/poruru-code/invoice-autorecord/internal/domain/invoice"
)

// Attribute names of the ledger table.
const (
	AttrSourceKey  = "source_key"
	AttrInvoiceID  = "invoice_id"
	AttrBucket     = "bucket"
	AttrVendor     = "vendor"
	AttrAmount     = "amount"
	AttrDate       = "invoice_date"
	AttrMemo       = "memo"
	AttrETag       = "etag"
	AttrRecordedAt = "recorded_at"
	AttrProcessor  = "processor"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the store.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

var _ DynamoDBAPI = (*dynamodb.Client)(nil)

// DynamoDB stores one item per source key.
type DynamoDB struct {
	Client DynamoDBAPI
	Table  string
}

// NewDynamoDB returns a store bound to a table.
func NewDynamoDB(client DynamoDBAPI, table string) *DynamoDB {
	return &DynamoDB{Client: client, Table: table}
}

// Upsert implements Store.
func (d *DynamoDB) Upsert(ctx context.Context, record invoice.Record) (Outcome, error) {
	if d == nil || d.Client == nil {
		return "", fmt.Errorf("dynamodb client is nil")
	}
	_, err := d.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.Table),
		Item:                recordItem(record),
		ConditionExpression: aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrSourceKey,
		},
	})
	if err != nil {
		var conditional *types.ConditionalCheckFailedException
		if errors.As(err, &conditional) {
			return OutcomeExisting, nil
		}
		return "", fmt.Errorf("put ledger item %s: %w", record.SourceKey, err)
	}
	return OutcomeCreated, nil
}

// List implements Lister with a paginated scan.
func (d *DynamoDB) List(ctx context.Context) ([]invoice.Record, error) {
	if d == nil || d.Client == nil {
		return nil, fmt.Errorf("dynamodb client is nil")
	}
	var out []invoice.Record
	var startKey map[string]types.AttributeValue
	for {
		resp, err := d.Client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(d.Table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		for _, item := range resp.Items {
			out = append(out, itemRecord(item))
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		startKey = resp.LastEvaluatedKey
	}
}

func recordItem(r invoice.Record) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		AttrSourceKey:  &types.AttributeValueMemberS{Value: r.SourceKey},
		AttrInvoiceID:  &types.AttributeValueMemberS{Value: r.InvoiceID},
		AttrAmount:     &types.AttributeValueMemberN{Value: strconv.FormatInt(r.Amount, 10)},
		AttrRecordedAt: &types.AttributeValueMemberS{Value: r.RecordedAt.UTC().Format(time.RFC3339)},
	}
	optional := map[string]string{
		AttrBucket:    r.Bucket,
		AttrVendor:    r.Vendor,
		AttrDate:      r.Date,
		AttrMemo:      r.Memo,
		AttrETag:      r.ETag,
		AttrProcessor: r.Processor,
	}
	for name, value := range optional {
		if value != "" {
			item[name] = &types.AttributeValueMemberS{Value: value}
		}
	}
	return item
}

func itemRecord(item map[string]types.AttributeValue) invoice.Record {
	r := invoice.Record{
		SourceKey: stringAttr(item, AttrSourceKey),
		InvoiceID: stringAttr(item, AttrInvoiceID),
		Bucket:    stringAttr(item, AttrBucket),
		Vendor:    stringAttr(item, AttrVendor),
		Date:      stringAttr(item, AttrDate),
		Memo:      stringAttr(item, AttrMemo),
		ETag:      stringAttr(item, AttrETag),
		Processor: stringAttr(item, AttrProcessor),
	}
	if n, ok := item[AttrAmount].(*types.AttributeValueMemberN); ok {
		r.Amount, _ = strconv.ParseInt(n.Value, 10, 64)
	}
	if ts, err := time.Parse(time.RFC3339, stringAttr(item, AttrRecordedAt)); err == nil {
		r.RecordedAt = ts
	}
	return r
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
