package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

const ledgerTTL = 24 * time.Hour

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// LedgerEntry is the recorded outcome of one tool call. Replaying the
// same tool call id returns this instead of re-executing the handler.
type LedgerEntry struct {
	ToolCallID string `dynamodbav:"toolCallId" json:"toolCallId"`
	CallID     string `dynamodbav:"callId" json:"callId"`
	Message    string `dynamodbav:"message" json:"message"`
	Stage      string `dynamodbav:"stage" json:"stage"`
	ErrorClass string `dynamodbav:"errorClass,omitempty" json:"errorClass,omitempty"`
	ErrorCode  string `dynamodbav:"errorCode,omitempty" json:"errorCode,omitempty"`
	RecordedAt string `dynamodbav:"recordedAt" json:"recordedAt"`
	ExpiresAt  int64  `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// ToolCallLedger is the idempotency record in DynamoDB, keyed by tool
// call id.
type ToolCallLedger struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewToolCallLedger builds a ledger backed by the provided DynamoDB client.
func NewToolCallLedger(client dynamoAPI, tableName string, logger *logging.Logger) *ToolCallLedger {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: ledger table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ToolCallLedger{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Get returns the recorded entry for a tool call id, or nil if unseen.
func (l *ToolCallLedger) Get(ctx context.Context, toolCallID string) (*LedgerEntry, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"toolCallId": &types.AttributeValueMemberS{Value: toolCallID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: ledger lookup: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var entry LedgerEntry
	if err := attributevalue.UnmarshalMap(out.Item, &entry); err != nil {
		return nil, fmt.Errorf("conversation: ledger decode: %w", err)
	}
	return &entry, nil
}

// Record writes the outcome of a tool call. A concurrent duplicate write
// loses the conditional put and is ignored; the first recorded outcome
// stands.
func (l *ToolCallLedger) Record(ctx context.Context, entry *LedgerEntry) error {
	if entry == nil || entry.ToolCallID == "" {
		return errors.New("conversation: ledger entry with tool call id required")
	}
	now := time.Now().UTC()
	entry.RecordedAt = now.Format(time.RFC3339Nano)
	if entry.ExpiresAt == 0 {
		entry.ExpiresAt = now.Add(ledgerTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("conversation: ledger marshal: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(toolCallId)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			l.logger.Debug("ledger entry already recorded", "tool_call_id", entry.ToolCallID)
			return nil
		}
		return fmt.Errorf("conversation: ledger record: %w", err)
	}
	return nil
}
