package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/okian/findna/internal/domain/model"
)

// Single-table key layout.
const (
	sessionKeyPrefix = "SESSION#"
	profileSortKey   = "PROFILE"
	contextSortKey   = "CONTEXT"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// dynamoItem is one stored document. The body is kept as JSON so the
// profile's integer keyed projections survive the round trip.
type dynamoItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	UserID    string `dynamodbav:"UserID,omitempty"`
	Document  string `dynamodbav:"Document"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// DynamoStore persists profiles in a single DynamoDB table keyed by
// session. It does not answer ranking queries.
type DynamoStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// NewDynamoStore creates a store writing to table through client.
func NewDynamoStore(client DynamoAPI, table string) (*DynamoStore, error) {
	if table == "" {
		return nil, ErrEmptyTable
	}
	return &DynamoStore{client: client, table: table, now: time.Now}, nil
}

// NewDynamoStoreFromEnv loads the default AWS configuration chain.
func NewDynamoStoreFromEnv(ctx context.Context, table, region string) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

func sessionKey(sessionID, sort string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionKeyPrefix + sessionID},
		"SK": &types.AttributeValueMemberS{Value: sort},
	}
}

// Upsert implements Store.Upsert with an unconditional PutItem.
func (s *DynamoStore) Upsert(ctx context.Context, p model.FinancialProfile) error {
	if err := checkSession(p.SessionID); err != nil {
		return err
	}
	return s.put(ctx, p.SessionID, profileSortKey, p.UserID, p)
}

// Get implements Store.Get.
func (s *DynamoStore) Get(ctx context.Context, sessionID string) (model.FinancialProfile, error) {
	var p model.FinancialProfile
	if err := s.get(ctx, sessionID, profileSortKey, &p); err != nil {
		return model.FinancialProfile{}, err
	}
	return p, nil
}

// UpsertContext implements Store.UpsertContext.
func (s *DynamoStore) UpsertContext(ctx context.Context, sessionID string, c model.NarrativeContext) error {
	if err := checkSession(sessionID); err != nil {
		return err
	}
	return s.put(ctx, sessionID, contextSortKey, "", c)
}

// GetContext implements Store.GetContext.
func (s *DynamoStore) GetContext(ctx context.Context, sessionID string) (model.NarrativeContext, error) {
	var c model.NarrativeContext
	if err := s.get(ctx, sessionID, contextSortKey, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *DynamoStore) put(ctx context.Context, sessionID, sort, userID string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	av, err := attributevalue.MarshalMap(dynamoItem{
		PK:        sessionKeyPrefix + sessionID,
		SK:        sort,
		UserID:    userID,
		Document:  string(body),
		UpdatedAt: s.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("dynamodb put %s/%s: %w", sessionID, sort, err)
	}
	return nil
}

func (s *DynamoStore) get(ctx context.Context, sessionID, sort string, into any) error {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            sessionKey(sessionID, sort),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("dynamodb get %s/%s: %w", sessionID, sort, err)
	}
	if out.Item == nil {
		return ErrNotFound
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return fmt.Errorf("failed to unmarshal item: %w", err)
	}
	if err := json.Unmarshal([]byte(item.Document), into); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

var _ Store = (*DynamoStore)(nil)
