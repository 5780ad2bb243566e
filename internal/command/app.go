// Where: internal/command/app.go
// What: invoicectl entrypoint logic.
// Why: Provide a testable command dispatcher.
package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/poruru-code/invoice-autorecord/internal/infra/interaction"
	"github.com/poruru-code/invoice-autorecord/internal/provisioner"
	"github.com/poruru-code/invoice-autorecord/internal/usecase/probe"
	"github.com/poruru-code/invoice-autorecord/internal/version"
)

// Dependencies holds everything a command needs from the outside world so
// tests can swap AWS, Docker and the terminal out.
type Dependencies struct {
	Out       io.Writer
	ErrOut    io.Writer
	Getwd     func() (string, error)
	Confirmer interaction.Confirmer
	Provision ProvisionDeps
	Probe     ProbeDeps
}

type (
	// ProvisionDeps builds the client factory for a provisioning target.
	ProvisionDeps struct {
		Factory func(target ProvisionTarget) (provisioner.ClientFactory, error)
	}

	// ProvisionTarget selects AWS or the local emulators of a compose project.
	ProvisionTarget struct {
		Local   bool
		Project string
	}

	// ProbeDeps builds the IAM simulator used by probe --simulate.
	ProbeDeps struct {
		Simulator func(ctx context.Context) (probe.Simulator, error)
	}
)

// CLI defines the command-line interface structure parsed by Kong.
type CLI struct {
	File      string       `short:"f" name:"file" help:"Path to stack.yaml (default: search upwards or $INVOICE_DESCRIPTOR)"`
	EnvFile   string       `name:"env-file" help:"Path to .env file"`
	NoEmoji   bool         `name:"no-emoji" help:"Disable emoji output"`
	Validate  ValidateCmd  `cmd:"" help:"Validate the stack descriptor"`
	Synth     SynthCmd     `cmd:"" help:"Render the SAM template"`
	Diff      DiffCmd      `cmd:"" help:"Compare the descriptor with another one"`
	Provision ProvisionCmd `cmd:"" help:"Apply ledger table, role policy and bucket notification"`
	Probe     ProbeCmd     `cmd:"" help:"Check what the handler role may do"`
	Simulate  SimulateCmd  `cmd:"" help:"Deliver local files through the handler with redelivery and reordering"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

// Run is the main entry point for command execution. It returns the process
// exit code.
func Run(args []string, deps Dependencies) int {
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.ErrOut == nil {
		deps.ErrOut = os.Stderr
	}
	if deps.Getwd == nil {
		deps.Getwd = os.Getwd
	}
	if deps.Provision.Factory == nil {
		deps.Provision.Factory = defaultProvisionFactory(deps.ErrOut)
	}
	if deps.Probe.Simulator == nil {
		deps.Probe.Simulator = defaultSimulator
	}
	out := deps.Out

	if len(args) == 0 {
		return runNoArgs(out)
	}

	cli := CLI{}
	parser, err := kong.New(&cli,
		kong.Name(cliName()),
		kong.Description("Record invoice PDFs uploaded to S3 in a ledger."),
		kong.Writers(out, deps.ErrOut),
	)
	if err != nil {
		return exitWithError(out, err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return handleParseError(err, out)
	}

	loadEnvFile(cli.EnvFile, consoleFor(deps.ErrOut, cli))

	if exitCode, handled := dispatchCommand(ctx.Command(), cli, deps); handled {
		return exitCode
	}
	consoleFor(out, cli).Warn("unknown command")
	return 1
}

type commandHandler func(CLI, Dependencies) int

func dispatchCommand(command string, cli CLI, deps Dependencies) (int, bool) {
	handlers := map[string]commandHandler{
		"validate":  runValidate,
		"synth":     runSynth,
		"diff":      runDiff,
		"provision": runProvision,
		"probe":     runProbe,
		"simulate":  runSimulate,
		"version":   runVersion,
	}
	name, _, _ := strings.Cut(command, " ")
	if handler, ok := handlers[name]; ok {
		return handler(cli, deps), true
	}
	return 1, false
}

func runVersion(cli CLI, deps Dependencies) int {
	consoleFor(deps.Out, cli).Info(version.GetVersion())
	return 0
}

// loadEnvFile loads --env-file, or .env in the working directory when present.
func loadEnvFile(path string, console warner) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			console.Warn(fmt.Sprintf("failed to load env file %s: %v", path, err))
		}
		return
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			console.Warn(fmt.Sprintf("failed to load .env: %v", err))
		}
	}
}

type warner interface {
	Warn(msg string)
}

func runNoArgs(out io.Writer) int {
	console := consoleFor(out, CLI{})
	cmd := cliName()
	console.Info("Usage:")
	console.Info(fmt.Sprintf("  %s <validate|synth|diff|provision|probe|simulate|version> [flags]", cmd))
	console.Info("")
	console.Info(fmt.Sprintf("Try: %s --help", cmd))
	return 0
}

// handleParseError turns common flag mistakes into a hint.
func handleParseError(err error, out io.Writer) int {
	msg := err.Error()
	if strings.Contains(msg, "expected string value") {
		console := consoleFor(out, CLI{})
		cmd := cliName()
		switch {
		case strings.Contains(msg, "--file"):
			console.Warn("`-f/--file` expects a path to stack.yaml.")
			console.Info(fmt.Sprintf("Example: %s -f ./stack.yaml validate", cmd))
			return 1
		case strings.Contains(msg, "--env-file"):
			console.Warn("`--env-file` expects a value. Provide a file path.")
			console.Info(fmt.Sprintf("Example: %s --env-file .env.local provision --local", cmd))
			return 1
		}
	}
	return exitWithError(out, err)
}
