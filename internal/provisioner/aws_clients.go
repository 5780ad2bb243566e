// Where: internal/provisioner/aws_clients.go
// What: AWS SDK adapters for S3, DynamoDB and IAM.
// Why: Map provisioner types to SDK types and keep SDK error handling out of the steps.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type awsS3Client struct {
	client *s3.Client
}

func (c awsS3Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	if c.client == nil {
		return false, fmt.Errorf("s3 client is nil")
	}
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return true, nil
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) || httpStatus(err) == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (c awsS3Client) LambdaNotifications(ctx context.Context, bucket string) (NotificationSet, error) {
	if c.client == nil {
		return NotificationSet{}, fmt.Errorf("s3 client is nil")
	}
	resp, err := c.client.GetBucketNotificationConfiguration(ctx, &s3.GetBucketNotificationConfigurationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return NotificationSet{}, err
	}
	set := NotificationSet{Other: otherNotifications{
		Queue:       resp.QueueConfigurations,
		Topic:       resp.TopicConfigurations,
		EventBridge: resp.EventBridgeConfiguration,
	}}
	for _, item := range resp.LambdaFunctionConfigurations {
		entry := LambdaNotification{
			ID:          aws.ToString(item.Id),
			FunctionARN: aws.ToString(item.LambdaFunctionArn),
		}
		for _, event := range item.Events {
			entry.Events = append(entry.Events, string(event))
		}
		if item.Filter != nil && item.Filter.Key != nil {
			for _, rule := range item.Filter.Key.FilterRules {
				switch strings.ToLower(string(rule.Name)) {
				case "prefix":
					entry.Prefix = aws.ToString(rule.Value)
				case "suffix":
					entry.Suffix = aws.ToString(rule.Value)
				}
			}
		}
		set.Lambda = append(set.Lambda, entry)
	}
	return set, nil
}

func (c awsS3Client) PutLambdaNotifications(ctx context.Context, bucket string, set NotificationSet) error {
	if c.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	cfg := &s3types.NotificationConfiguration{}
	if other, ok := set.Other.(otherNotifications); ok {
		cfg.QueueConfigurations = other.Queue
		cfg.TopicConfigurations = other.Topic
		cfg.EventBridgeConfiguration = other.EventBridge
	}
	for _, item := range set.Lambda {
		entry := s3types.LambdaFunctionConfiguration{
			Id:                aws.String(item.ID),
			LambdaFunctionArn: aws.String(item.FunctionARN),
		}
		for _, event := range item.Events {
			entry.Events = append(entry.Events, s3types.Event(event))
		}
		var rules []s3types.FilterRule
		if item.Prefix != "" {
			rules = append(rules, s3types.FilterRule{Name: s3types.FilterRuleNamePrefix, Value: aws.String(item.Prefix)})
		}
		if item.Suffix != "" {
			rules = append(rules, s3types.FilterRule{Name: s3types.FilterRuleNameSuffix, Value: aws.String(item.Suffix)})
		}
		if len(rules) > 0 {
			entry.Filter = &s3types.NotificationConfigurationFilter{Key: &s3types.S3KeyFilter{FilterRules: rules}}
		}
		cfg.LambdaFunctionConfigurations = append(cfg.LambdaFunctionConfigurations, entry)
	}
	_, err := c.client.PutBucketNotificationConfiguration(ctx, &s3.PutBucketNotificationConfigurationInput{
		Bucket:                    aws.String(bucket),
		NotificationConfiguration: cfg,
	})
	return err
}

type otherNotifications struct {
	Queue       []s3types.QueueConfiguration
	Topic       []s3types.TopicConfiguration
	EventBridge *s3types.EventBridgeConfiguration
}

type awsDynamoClient struct {
	client *dynamodb.Client
}

func (c awsDynamoClient) ListTables(ctx context.Context) ([]string, error) {
	if c.client == nil {
		return nil, fmt.Errorf("dynamodb client is nil")
	}
	var names []string
	paginator := dynamodb.NewListTablesPaginator(c.client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		names = append(names, page.TableNames...)
	}
	return names, nil
}

func (c awsDynamoClient) CreateTable(ctx context.Context, input DynamoCreateInput) error {
	if c.client == nil {
		return fmt.Errorf("dynamodb client is nil")
	}
	awsInput, err := buildAWSCreateTableInput(input)
	if err != nil {
		return err
	}
	_, err = c.client.CreateTable(ctx, awsInput)
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	return err
}

func buildAWSCreateTableInput(input DynamoCreateInput) (*dynamodb.CreateTableInput, error) {
	billingMode, err := mapBillingMode(input.BillingMode)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.CreateTableInput{
		TableName:   aws.String(input.TableName),
		BillingMode: billingMode,
	}
	for _, item := range input.KeySchema {
		keyType, err := mapKeyType(item.KeyType)
		if err != nil {
			return nil, err
		}
		out.KeySchema = append(out.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(item.AttributeName),
			KeyType:       keyType,
		})
	}
	for _, item := range input.AttributeDefinitions {
		attrType, err := mapAttributeType(item.AttributeType)
		if err != nil {
			return nil, err
		}
		out.AttributeDefinitions = append(out.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(item.AttributeName),
			AttributeType: attrType,
		})
	}
	if billingMode == types.BillingModeProvisioned {
		out.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		}
	}
	return out, nil
}

func mapBillingMode(value string) (types.BillingMode, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "PAY_PER_REQUEST", "":
		return types.BillingModePayPerRequest, nil
	case "PROVISIONED":
		return types.BillingModeProvisioned, nil
	default:
		return "", fmt.Errorf("unsupported billing mode: %s", value)
	}
}

func mapKeyType(value string) (types.KeyType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "HASH":
		return types.KeyTypeHash, nil
	case "RANGE":
		return types.KeyTypeRange, nil
	default:
		return "", fmt.Errorf("unsupported key type: %s", value)
	}
}

func mapAttributeType(value string) (types.ScalarAttributeType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "S":
		return types.ScalarAttributeTypeS, nil
	case "N":
		return types.ScalarAttributeTypeN, nil
	case "B":
		return types.ScalarAttributeTypeB, nil
	default:
		return "", fmt.Errorf("unsupported attribute type: %s", value)
	}
}

type awsIAMClient struct {
	client *iam.Client
}

func (c awsIAMClient) GetRolePolicy(ctx context.Context, role, name string) (string, bool, error) {
	if c.client == nil {
		return "", false, fmt.Errorf("iam client is nil")
	}
	resp, err := c.client.GetRolePolicy(ctx, &iam.GetRolePolicyInput{
		RoleName:   aws.String(role),
		PolicyName: aws.String(name),
	})
	if err != nil {
		var notFound *iamtypes.NoSuchEntityException
		if errors.As(err, &notFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return aws.ToString(resp.PolicyDocument), true, nil
}

func (c awsIAMClient) PutRolePolicy(ctx context.Context, role, name, document string) error {
	if c.client == nil {
		return fmt.Errorf("iam client is nil")
	}
	_, err := c.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(role),
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(document),
	})
	return err
}

func httpStatus(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return http.StatusNotFound
	}
	return 0
}
