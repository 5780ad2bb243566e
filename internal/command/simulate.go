// Where: internal/command/simulate.go
// What: simulate command.
// Why: Replay a folder of invoices through the real handler under at-least-once delivery.
package command

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/poruru-code/invoice-autorecord/internal/delivery"
	"github.com/poruru-code/invoice-autorecord/internal/domain/event"
	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/handler"
	"github.com/poruru-code/invoice-autorecord/internal/infra/ledger"
	"github.com/poruru-code/invoice-autorecord/internal/infra/objectstore"
	"github.com/poruru-code/invoice-autorecord/internal/logging"
	"github.com/poruru-code/invoice-autorecord/internal/trigger"
)

const (
	simulateLedgerCSV    = "csv"
	simulateLedgerMemory = "memory"
)

// SimulateCmd delivers every file of a directory as an object-created event.
type SimulateCmd struct {
	Dir         string   `arg:"" type:"existingdir" help:"Directory whose files are uploaded to the simulated bucket"`
	Duplicates  int      `default:"1" help:"Extra copies of each event"`
	Shuffle     bool     `help:"Deliver copies in random order"`
	Seed        uint64   `default:"1" help:"Seed for --shuffle"`
	Concurrency int      `default:"4" help:"Parallel deliveries"`
	Batch       bool     `help:"Put every object in one event instead of one event per object"`
	Missing     []string `help:"Keys deleted after their event is emitted (repeatable)"`
	Ledger      string   `default:"csv" enum:"csv,memory" help:"Ledger backend (csv/memory)"`
	Out         string   `short:"o" help:"Write the resulting CSV ledger to this path"`
	Verbose     bool     `short:"v" help:"Print handler logs"`
}

func runSimulate(cli CLI, deps Dependencies) int {
	st, path, err := loadStack(cli, deps, true)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	cmd := cli.Simulate
	console := consoleFor(deps.Out, cli)

	objects := objectstore.NewMemory()
	var records []events.S3EventRecord
	at := time.Now().UTC()
	err = filepath.WalkDir(cmd.Dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		rel, err := filepath.Rel(cmd.Dir, p)
		if err != nil {
			return err
		}
		body, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		obj := objects.Put(st.Bucket.Name, key, body)
		records = append(records, event.NewS3Record(st.Bucket.Name, key, obj.Size, at))
		return nil
	})
	if err != nil {
		return exitWithError(deps.Out, fmt.Errorf("read %s: %w", cmd.Dir, err))
	}
	for _, key := range cmd.Missing {
		objects.Delete(st.Bucket.Name, key)
	}

	store, lister, err := simulationLedger(cmd.Ledger, objects, st)
	if err != nil {
		return exitWithError(deps.Out, err)
	}

	logOut := io.Discard
	if cmd.Verbose {
		logOut = deps.ErrOut
	}
	logger := logging.New(logOut, logging.ParseLevel("debug"), true)
	h := handler.New(objects, store, handler.Config{
		LedgerKey:    st.Ledger.Key,
		Processor:    st.Ledger.Processor,
		TagProcessed: st.Ledger.TagProcessed,
	}, logger)
	dispatcher := trigger.NewDispatcher(event.NewFilter(st.Subscription), h, logger)

	payloads := delivery.Single(records...)
	if cmd.Batch && len(records) > 0 {
		payloads = []events.S3Event{{Records: records}}
	}
	harness := &delivery.Harness{
		Target:      dispatcher.HandleLambda,
		MaxAttempts: st.Delivery.MaxRetryAttempts + 1,
		Duplicates:  cmd.Duplicates,
		Shuffle:     cmd.Shuffle,
		Seed:        cmd.Seed,
		Concurrency: cmd.Concurrency,
		Logger:      logger,
	}
	ctx := context.Background()
	report, err := harness.Deliver(ctx, payloads)
	if err != nil {
		return exitWithError(deps.Out, err)
	}

	console.BlockStart("📬", fmt.Sprintf("Delivered %d object(s) from %s (%s)", len(records), cmd.Dir, describeSource(path)))
	console.Item("copies", report.Copies)
	console.Item("attempts", report.Attempts)
	console.Item("succeeded", report.Succeeded)
	console.Item("retried", report.Retried)
	console.Item("dead letters", len(report.DeadLetters))
	for _, dl := range report.DeadLetters {
		console.ItemPlain(fmt.Sprintf("%s %v after %d attempt(s): %v", dl.Kind, dl.Keys, dl.Attempts, dl.Err))
	}
	console.BlockEnd()

	recorded, err := lister.List(ctx)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	console.BlockStart("🧾", fmt.Sprintf("Ledger (%d record(s))", len(recorded)))
	for _, r := range recorded {
		console.ItemPlain(fmt.Sprintf("%s  %s", r.InvoiceID, r.SourceKey))
	}
	console.BlockEnd()

	if cmd.Out != "" {
		if err := writeSimulatedLedger(ctx, cmd, objects, st); err != nil {
			return exitWithError(deps.Out, err)
		}
		console.Success("Ledger written to " + cmd.Out)
	}
	return 0
}

func simulationLedger(kind string, objects *objectstore.Memory, st stack.Stack) (ledger.Store, ledger.Lister, error) {
	switch kind {
	case simulateLedgerMemory:
		store := ledger.NewMemory()
		return store, store, nil
	case simulateLedgerCSV, "":
		store := ledger.NewCSV(objects.S3(), st.Bucket.Name, st.Ledger.Key)
		store.Backoff = time.Millisecond
		store.MaxAttempts = 20
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported ledger %q", kind)
	}
}

func writeSimulatedLedger(ctx context.Context, cmd SimulateCmd, objects *objectstore.Memory, st stack.Stack) error {
	if cmd.Ledger == simulateLedgerMemory {
		return fmt.Errorf("--out needs the csv ledger")
	}
	resp, err := objects.S3().GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(st.Bucket.Name),
		Key:    aws.String(st.Ledger.Key),
	})
	if err != nil {
		return fmt.Errorf("read simulated ledger: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return os.WriteFile(cmd.Out, payload, 0o644)
}
