package repository

import (
	"context"
	"time"

	"mecanica_billing/internal/domain/entities"
	"mecanica_billing/internal/usecase/interfaces"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

const (
	defaultQuotesTableName    = "quotes"
	quotesServiceOrderIDIndex = "service_order_id-index"
)

type quoteItemRecord struct {
	Kind        string `dynamodbav:"kind"`
	Description string `dynamodbav:"description"`
	Quantity    int    `dynamodbav:"quantity"`
	UnitPrice   string `dynamodbav:"unit_price"`
	Total       string `dynamodbav:"total"`
}

type statusChangeRecord struct {
	From  string `dynamodbav:"from,omitempty"`
	To    string `dynamodbav:"to"`
	Actor string `dynamodbav:"actor"`
	Note  string `dynamodbav:"note,omitempty"`
	At    string `dynamodbav:"at"`
}

type quoteItem struct {
	ID              string               `dynamodbav:"id"`
	ServiceOrderID  string               `dynamodbav:"service_order_id"`
	Status          string               `dynamodbav:"status"`
	Items           []quoteItemRecord    `dynamodbav:"items,omitempty"`
	Total           string               `dynamodbav:"total"`
	Note            string               `dynamodbav:"note,omitempty"`
	RejectionReason string               `dynamodbav:"rejection_reason,omitempty"`
	ApprovedAt      string               `dynamodbav:"approved_at,omitempty"`
	RejectedAt      string               `dynamodbav:"rejected_at,omitempty"`
	History         []statusChangeRecord `dynamodbav:"history,omitempty"`
	CreatedAt       string               `dynamodbav:"created_at"`
	UpdatedAt       string               `dynamodbav:"updated_at"`
}

// QuoteDynamoRepository persists Quote aggregates in DynamoDB.
//
// Table requirements:
//   - PK: id (string)
//   - GSI: service_order_id-index (PK: service_order_id)
//
// Saves write the whole aggregate: items and history are nested lists, so
// partial update expressions do not fit here.

type QuoteDynamoRepository struct {
	ddb       *dynamodb.Client
	tableName string
}

var _ interfaces.IQuoteRepository = (*QuoteDynamoRepository)(nil)

func NewQuoteDynamoRepository(ddb *dynamodb.Client) *QuoteDynamoRepository {
	return &QuoteDynamoRepository{
		ddb:       ddb,
		tableName: getenvDefault("QUOTES_TABLE", defaultQuotesTableName),
	}
}

func (r *QuoteDynamoRepository) Create(ctx context.Context, q entities.Quote) (entities.Quote, error) {
	av, err := attributevalue.MarshalMap(toQuoteItem(q))
	if err != nil {
		return entities.Quote{}, err
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": "id",
		},
	})
	if err != nil {
		return entities.Quote{}, err
	}
	return q, nil
}

func (r *QuoteDynamoRepository) Save(ctx context.Context, q entities.Quote) (entities.Quote, error) {
	av, err := attributevalue.MarshalMap(toQuoteItem(q))
	if err != nil {
		return entities.Quote{}, err
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return entities.Quote{}, err
	}
	return q, nil
}

func (r *QuoteDynamoRepository) GetByID(ctx context.Context, id string) (entities.Quote, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return entities.Quote{}, err
	}
	if len(out.Item) == 0 {
		return entities.Quote{}, nil
	}

	var it quoteItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return entities.Quote{}, err
	}
	return fromQuoteItem(it), nil
}

// GetByServiceOrderID returns the newest non-cancelled quote for the order,
// zero-value when none exists. Cancelled quotes do not count against the
// one-quote-per-order rule.
func (r *QuoteDynamoRepository) GetByServiceOrderID(ctx context.Context, serviceOrderID string) (entities.Quote, error) {
	out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(quotesServiceOrderIDIndex),
		KeyConditionExpression: aws.String("service_order_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: serviceOrderID},
		},
	})
	if err != nil {
		return entities.Quote{}, err
	}

	var newest entities.Quote
	for _, raw := range out.Items {
		var it quoteItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return entities.Quote{}, err
		}
		q := fromQuoteItem(it)
		if q.Status == entities.QuoteStatusCancelled {
			continue
		}
		if newest.ID == "" || q.CreatedAt.After(newest.CreatedAt) {
			newest = q
		}
	}
	return newest, nil
}

func (r *QuoteDynamoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	return err
}

func toQuoteItem(q entities.Quote) quoteItem {
	items := make([]quoteItemRecord, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, quoteItemRecord{
			Kind:        string(it.Kind),
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.String(),
			Total:       it.Total.String(),
		})
	}

	history := make([]statusChangeRecord, 0, len(q.History))
	for _, h := range q.History {
		history = append(history, statusChangeRecord{
			From:  string(h.From),
			To:    string(h.To),
			Actor: h.Actor,
			Note:  h.Note,
			At:    h.At.UTC().Format(time.RFC3339Nano),
		})
	}

	return quoteItem{
		ID:              q.ID,
		ServiceOrderID:  q.ServiceOrderID,
		Status:          string(q.Status),
		Items:           items,
		Total:           q.Total.String(),
		Note:            q.Note,
		RejectionReason: q.RejectionReason,
		ApprovedAt:      formatOptionalTime(q.ApprovedAt),
		RejectedAt:      formatOptionalTime(q.RejectedAt),
		History:         history,
		CreatedAt:       q.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       q.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromQuoteItem(it quoteItem) entities.Quote {
	items := make([]entities.QuoteItem, 0, len(it.Items))
	for _, rec := range it.Items {
		unitPrice, _ := decimal.NewFromString(rec.UnitPrice)
		total, _ := decimal.NewFromString(rec.Total)
		items = append(items, entities.QuoteItem{
			Kind:        entities.ItemKind(rec.Kind),
			Description: rec.Description,
			Quantity:    rec.Quantity,
			UnitPrice:   unitPrice,
			Total:       total,
		})
	}

	history := make([]entities.StatusChange, 0, len(it.History))
	for _, rec := range it.History {
		at, _ := time.Parse(time.RFC3339Nano, rec.At)
		history = append(history, entities.StatusChange{
			From:  entities.QuoteStatus(rec.From),
			To:    entities.QuoteStatus(rec.To),
			Actor: rec.Actor,
			Note:  rec.Note,
			At:    at,
		})
	}

	total, _ := decimal.NewFromString(it.Total)
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)

	return entities.Quote{
		ID:              it.ID,
		ServiceOrderID:  it.ServiceOrderID,
		Status:          entities.QuoteStatus(it.Status),
		Items:           items,
		Total:           total,
		Note:            it.Note,
		RejectionReason: it.RejectionReason,
		ApprovedAt:      parseOptionalTime(it.ApprovedAt),
		RejectedAt:      parseOptionalTime(it.RejectedAt),
		History:         history,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}
}
