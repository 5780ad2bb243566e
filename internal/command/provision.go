// Where: internal/command/provision.go
// What: provision command and its default client wiring.
// Why: Bind the deployed function to the existing bucket, which the SAM template cannot do.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/poruru-code/invoice-autorecord/internal/infra/awsclient"
	"github.com/poruru-code/invoice-autorecord/internal/infra/interaction"
	"github.com/poruru-code/invoice-autorecord/internal/provisioner"
)

var errNotConfirmed = errors.New("provisioning not confirmed (use --yes in non-interactive shells)")

// ProvisionCmd applies the descriptor to AWS or local emulators.
type ProvisionCmd struct {
	Local   bool   `help:"Target the local emulators of a compose project"`
	Project string `short:"p" help:"Compose project name for --local"`
	Yes     bool   `short:"y" help:"Do not ask for confirmation"`
}

func runProvision(cli CLI, deps Dependencies) int {
	st, _, err := loadStack(cli, deps, false)
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	cmd := cli.Provision
	if !cmd.Yes {
		target := "AWS"
		if cmd.Local {
			target = "local emulators"
		}
		ok, err := confirm(deps.Confirmer,
			fmt.Sprintf("Provision %s against %s?", st.Name, target),
			fmt.Sprintf("bucket s3://%s, function %s", st.Bucket.Name, st.Function.Name))
		if err != nil {
			return exitWithError(deps.Out, err)
		}
		if !ok {
			return exitWithError(deps.Out, errNotConfirmed)
		}
	}

	factory, err := deps.Provision.Factory(ProvisionTarget{Local: cmd.Local, Project: cmd.Project})
	if err != nil {
		return exitWithError(deps.Out, err)
	}
	runner := provisioner.New(deps.Out, factory)
	runner.Emoji = !cli.NoEmoji
	if _, err := runner.Apply(context.Background(), st); err != nil {
		return exitWithError(deps.Out, err)
	}
	return 0
}

func confirm(confirmer interaction.Confirmer, title, description string) (bool, error) {
	if confirmer == nil {
		return false, nil
	}
	return confirmer.Confirm(title, description)
}

func defaultProvisionFactory(errOut io.Writer) func(ProvisionTarget) (provisioner.ClientFactory, error) {
	return func(target ProvisionTarget) (provisioner.ClientFactory, error) {
		opts := awsclient.OptionsFromEnv()
		if !target.Local {
			return provisioner.AWSClientFactory{Options: opts}, nil
		}
		factory := provisioner.LocalClientFactory{
			Project: target.Project,
			Options: opts,
			Out: func(format string, args ...any) {
				fmt.Fprintf(errOut, format, args...)
			},
		}
		if lister, err := provisioner.NewDockerClient(); err == nil {
			factory.PortResolver = provisioner.DockerPortResolver{Client: lister}
		} else {
			fmt.Fprintf(errOut, "docker unavailable, using port env/defaults: %v\n", err)
		}
		return factory, nil
	}
}
