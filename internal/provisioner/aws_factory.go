// Where: internal/provisioner/aws_factory.go
// What: Client factory for AWS and local emulator endpoints.
// Why: Keep endpoint discovery and SDK configuration out of the provisioning steps.
package provisioner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/poruru-code/invoice-autorecord/internal/infra/awsclient"
	"github.com/poruru-code/invoice-autorecord/internal/meta"
)

// Local emulator defaults, matching the compose services used for development.
const (
	defaultDynamoPort = 8001
	defaultS3Port     = 9000

	EnvPortS3       = meta.EnvPrefix + "_PORT_S3"
	EnvPortDynamoDB = meta.EnvPrefix + "_PORT_DATABASE"
)

// ClientFactory creates the provisioner's clients.
type ClientFactory interface {
	Clients(ctx context.Context) (Clients, error)
}

// AWSClientFactory builds clients for a real account from the ambient
// credentials chain.
type AWSClientFactory struct {
	Options awsclient.Options
}

// Clients implements ClientFactory.
func (f AWSClientFactory) Clients(ctx context.Context) (Clients, error) {
	factory, err := awsclient.New(ctx, f.Options)
	if err != nil {
		return Clients{}, err
	}
	return Clients{
		S3:       awsS3Client{client: factory.S3()},
		DynamoDB: awsDynamoClient{client: factory.DynamoDB()},
		IAM:      awsIAMClient{client: factory.IAM()},
	}, nil
}

// LocalClientFactory targets emulators published by a compose project. IAM
// is not emulated, so the role policy step is skipped.
type LocalClientFactory struct {
	Project      string
	Options      awsclient.Options
	PortResolver PortResolver
	Out          func(format string, args ...any)
}

// Clients implements ClientFactory.
func (f LocalClientFactory) Clients(ctx context.Context) (Clients, error) {
	project := strings.TrimSpace(f.Project)
	if project == "" {
		project = meta.Slug
	}
	logf := f.Out
	if logf == nil {
		logf = func(string, ...any) {}
	}
	opts := f.Options
	if opts.AccessKey == "" {
		opts.AccessKey = envOr(meta.EnvPrefix+"_ACCESS_KEY", "dummy")
	}
	if opts.SecretKey == "" {
		opts.SecretKey = envOr(meta.EnvPrefix+"_SECRET_KEY", "dummy")
	}

	if opts.S3Endpoint == "" {
		port, ok := resolvePort(ctx, EnvPortS3, defaultS3Port,
			PortRequest{Project: project, Service: "s3-storage", ContainerPort: 9000}, f.PortResolver)
		if !ok {
			return Clients{}, fmt.Errorf("%w: s3 emulator port not resolved", ErrBucketUnavailable)
		}
		opts.S3Endpoint = fmt.Sprintf("http://localhost:%d", port)
	}
	opts.UsePathStyle = true

	dynamoResolved := true
	if opts.DynamoDBEndpoint == "" {
		port, ok := resolvePort(ctx, EnvPortDynamoDB, defaultDynamoPort,
			PortRequest{Project: project, Service: "database", ContainerPort: 8000}, f.PortResolver)
		if ok {
			opts.DynamoDBEndpoint = fmt.Sprintf("http://localhost:%d", port)
		} else {
			dynamoResolved = false
			logf("skipping DynamoDB: port not resolved\n")
		}
	}

	factory, err := awsclient.New(ctx, opts)
	if err != nil {
		return Clients{}, err
	}
	clients := Clients{S3: awsS3Client{client: factory.S3()}}
	if dynamoResolved {
		clients.DynamoDB = awsDynamoClient{client: factory.DynamoDB()}
	}
	return clients, nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
