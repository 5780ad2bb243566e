// Where: cmd/ledger-handler/main.go
// What: Lambda entrypoint for the ledger handler.
// Why: Bind S3 object-created notifications to the ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/poruru-code/invoice-autorecord/internal/infra/awsclient"
	"github.com/poruru-code/invoice-autorecord/internal/infra/config"
	"github.com/poruru-code/invoice-autorecord/internal/logging"
)

func main() {
	rt, err := config.LoadRuntime()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Init(os.Stderr, logging.ParseLevel(rt.LogLevel), rt.LogText)

	factory, err := awsclient.New(context.Background(), awsclient.OptionsFromEnv())
	if err != nil {
		logger.Error("load aws config", "error", err)
		os.Exit(1)
	}
	dispatcher, err := newDispatcher(rt, factory.S3(), factory.DynamoDB(), logger)
	if err != nil {
		logger.Error("build dispatcher", "error", err)
		os.Exit(1)
	}
	lambda.Start(dispatcher.HandleLambda)
}
