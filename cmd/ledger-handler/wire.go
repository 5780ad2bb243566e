// Where: cmd/ledger-handler/wire.go
// What: Handler dependency wiring from the runtime environment.
// Why: Keep main free of store selection so it can be tested.
package main

import (
	"fmt"
	"log/slog"

	"github.com/poruru-code/invoice-autorecord/internal/domain/event"
	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/handler"
	"github.com/poruru-code/invoice-autorecord/internal/infra/config"
	"github.com/poruru-code/invoice-autorecord/internal/infra/ledger"
	"github.com/poruru-code/invoice-autorecord/internal/infra/objectstore"
	"github.com/poruru-code/invoice-autorecord/internal/trigger"
)

// s3Client is the S3 surface shared by the object store and the CSV ledger.
type s3Client interface {
	objectstore.S3API
	ledger.CSVS3API
}

func newDispatcher(rt config.Runtime, s3c s3Client, ddb ledger.DynamoDBAPI, logger *slog.Logger) (*trigger.Dispatcher, error) {
	var (
		store     ledger.Store
		ledgerKey string
	)
	switch rt.LedgerBackend {
	case stack.LedgerBackendDynamoDB:
		store = ledger.NewDynamoDB(ddb, rt.LedgerTable)
	case stack.LedgerBackendS3CSV:
		store = ledger.NewCSV(s3c, rt.LedgerBucket, rt.LedgerKey)
		ledgerKey = rt.LedgerKey
	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", rt.LedgerBackend)
	}
	h := handler.New(objectstore.NewS3(s3c), store, handler.Config{
		LedgerKey:    ledgerKey,
		Processor:    rt.Processor,
		TagProcessed: rt.TagProcessed,
	}, logger)
	filter := event.Filter{Prefix: rt.Prefix, Suffix: rt.Suffix}
	return trigger.NewDispatcher(filter, h, logger), nil
}
