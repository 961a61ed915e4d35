package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/poofware/backoffice-service/internal/models"
)

// ReceiptArchive keeps the raw gateway answer of every charge attempt.
type ReceiptArchive interface {
	Put(ctx context.Context, r models.PaymentReceipt) error
}

// ReceiptArchiveConfig locates the DynamoDB table. Endpoint is only set
// for local DynamoDB.
type ReceiptArchiveConfig struct {
	Table           string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type receiptItem struct {
	ID                string         `dynamodbav:"id"`
	SubscriptionID    string         `dynamodbav:"subscription_id"`
	Provider          string         `dynamodbav:"provider"`
	ProviderPaymentID string         `dynamodbav:"provider_payment_id,omitempty"`
	ProviderStatus    string         `dynamodbav:"provider_status"`
	RecordedAt        string         `dynamodbav:"recorded_at"`
	Payload           map[string]any `dynamodbav:"payload,omitempty"`
	PayloadRaw        string         `dynamodbav:"payload_raw,omitempty"`
}

type dynamoReceiptArchive struct {
	ddb   *dynamodb.Client
	table string
}

func NewDynamoReceiptArchive(ctx context.Context, cfg ReceiptArchiveConfig) (ReceiptArchive, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == dynamodb.ServiceID {
				return aws.Endpoint{URL: cfg.Endpoint, SigningRegion: region, HostnameImmutable: true}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	return &dynamoReceiptArchive{ddb: dynamodb.NewFromConfig(awsCfg), table: cfg.Table}, nil
}

func (a *dynamoReceiptArchive) Put(ctx context.Context, r models.PaymentReceipt) error {
	it := receiptItem{
		ID:                r.PaymentID.String(),
		SubscriptionID:    r.SubscriptionID.String(),
		Provider:          r.Provider,
		ProviderPaymentID: r.ProviderPaymentID,
		ProviderStatus:    r.ProviderStatus,
		RecordedAt:        r.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(r.RawResponse) > 0 {
		var payload map[string]any
		if json.Valid(r.RawResponse) && json.Unmarshal(r.RawResponse, &payload) == nil {
			it.Payload = payload
		} else {
			it.PayloadRaw = string(r.RawResponse)
		}
	}

	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return err
	}
	_, err = a.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(a.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	return err
}
