// Where: internal/provisioner/dynamodb.go
// What: Ledger table provisioning.
// Why: The DynamoDB ledger backend needs a table keyed by source object key.
package provisioner

import (
	"context"
	"fmt"
	"strings"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/infra/ledger"
)

// TableAPI is what the provisioner needs from DynamoDB.
type TableAPI interface {
	ListTables(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, input DynamoCreateInput) error
}

// DynamoCreateInput describes a table to create.
type DynamoCreateInput struct {
	TableName            string
	KeySchema            []KeySchemaElement
	AttributeDefinitions []AttributeDefinition
	BillingMode          string
}

type KeySchemaElement struct {
	AttributeName string
	KeyType       string
}

type AttributeDefinition struct {
	AttributeName string
	AttributeType string
}

// LedgerTableInput is the table definition for the DynamoDB ledger store.
func LedgerTableInput(table string) DynamoCreateInput {
	return DynamoCreateInput{
		TableName:            table,
		KeySchema:            []KeySchemaElement{{AttributeName: ledger.AttrSourceKey, KeyType: "HASH"}},
		AttributeDefinitions: []AttributeDefinition{{AttributeName: ledger.AttrSourceKey, AttributeType: "S"}},
		BillingMode:          "PAY_PER_REQUEST",
	}
}

func ensureLedgerTable(ctx context.Context, clients Clients, st stack.Stack) (StepResult, error) {
	result := StepResult{Step: StepLedgerTable}
	if st.Ledger.Backend != stack.LedgerBackendDynamoDB {
		result.Skipped = true
		result.Detail = "ledger backend is " + st.Ledger.Backend
		return result, nil
	}
	name := strings.TrimSpace(st.Ledger.Table)
	result.Detail = name
	if clients.DynamoDB == nil {
		return result, fmt.Errorf("dynamodb client not configured")
	}
	names, err := clients.DynamoDB.ListTables(ctx)
	if err != nil {
		return result, fmt.Errorf("list tables: %w", err)
	}
	for _, existing := range names {
		if existing == name {
			return result, nil
		}
	}
	if err := clients.DynamoDB.CreateTable(ctx, LedgerTableInput(name)); err != nil {
		return result, fmt.Errorf("create table %s: %w", name, err)
	}
	result.Changed = true
	return result, nil
}
