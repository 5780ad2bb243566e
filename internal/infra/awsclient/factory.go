// Where: internal/infra/awsclient/factory.go
// What: AWS SDK client factory for S3, DynamoDB, and IAM.
// Why: Share region, credential, and endpoint overrides between the handler and the CLI.
package awsclient

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/poruru-code/invoice-autorecord/internal/meta"
)

// Options controls how clients are built. Empty endpoints use the AWS
// defaults; static keys are only used when both are set, which is the local
// emulator case.
type Options struct {
	Region           string
	S3Endpoint       string
	DynamoDBEndpoint string
	IAMEndpoint      string
	AccessKey        string
	SecretKey        string
	UsePathStyle     bool
}

// OptionsFromEnv reads overrides from the environment.
func OptionsFromEnv() Options {
	opts := Options{
		Region:           firstNonEmpty(os.Getenv("AWS_REGION"), os.Getenv("AWS_DEFAULT_REGION")),
		S3Endpoint:       strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		DynamoDBEndpoint: strings.TrimSpace(os.Getenv("DYNAMODB_ENDPOINT")),
		IAMEndpoint:      strings.TrimSpace(os.Getenv("IAM_ENDPOINT")),
		AccessKey:        os.Getenv(meta.EnvPrefix + "_ACCESS_KEY"),
		SecretKey:        os.Getenv(meta.EnvPrefix + "_SECRET_KEY"),
	}
	opts.UsePathStyle = opts.S3Endpoint != ""
	return opts
}

// Factory builds SDK clients from one loaded aws.Config.
type Factory struct {
	cfg  aws.Config
	opts Options
}

// New loads the shared configuration.
func New(ctx context.Context, opts Options) (*Factory, error) {
	cfg, err := LoadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Factory{cfg: cfg, opts: opts}, nil
}

// LoadConfig resolves region and credentials.
func LoadConfig(ctx context.Context, opts Options) (aws.Config, error) {
	region := opts.Region
	if region == "" {
		region = meta.DefaultAWSRegion
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		loaders = append(loaders, config.WithCredentialsProvider(creds))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// Config exposes the loaded configuration.
func (f *Factory) Config() aws.Config {
	return f.cfg
}

// S3 returns an S3 client.
func (f *Factory) S3() *s3.Client {
	return s3.NewFromConfig(f.cfg, func(options *s3.Options) {
		if f.opts.S3Endpoint != "" {
			options.BaseEndpoint = aws.String(f.opts.S3Endpoint)
		}
		options.UsePathStyle = f.opts.UsePathStyle
	})
}

// DynamoDB returns a DynamoDB client.
func (f *Factory) DynamoDB() *dynamodb.Client {
	return dynamodb.NewFromConfig(f.cfg, func(options *dynamodb.Options) {
		if f.opts.DynamoDBEndpoint != "" {
			options.BaseEndpoint = aws.String(f.opts.DynamoDBEndpoint)
		}
	})
}

// IAM returns an IAM client.
func (f *Factory) IAM() *iam.Client {
	return iam.NewFromConfig(f.cfg, func(options *iam.Options) {
		if f.opts.IAMEndpoint != "" {
			options.BaseEndpoint = aws.String(f.opts.IAMEndpoint)
		}
	})
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if v := strings.TrimSpace(value); v != "" {
			return v
		}
	}
	return ""
}
