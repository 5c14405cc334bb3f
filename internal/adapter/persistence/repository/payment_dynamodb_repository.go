package repository

import (
	"context"
	"sort"
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
	defaultPaymentsTableName      = "payments"
	paymentsQuoteIDIndex          = "quote_id-index"
	paymentsGatewayPaymentIDIndex = "gateway_payment_id-index"
)

type paymentItem struct {
	ID                string `dynamodbav:"id"`
	QuoteID           string `dynamodbav:"quote_id"`
	ServiceOrderID    string `dynamodbav:"service_order_id"`
	Status            string `dynamodbav:"status"`
	Amount            string `dynamodbav:"amount"`
	Method            string `dynamodbav:"method"`
	Receipt           string `dynamodbav:"receipt,omitempty"`
	CheckoutSessionID string `dynamodbav:"checkout_session_id,omitempty"`
	CheckoutLink      string `dynamodbav:"checkout_link,omitempty"`
	GatewayPaymentID  string `dynamodbav:"gateway_payment_id,omitempty"`
	ConfirmedAt       string `dynamodbav:"confirmed_at,omitempty"`
	RefundedAt        string `dynamodbav:"refunded_at,omitempty"`
	RefundReason      string `dynamodbav:"refund_reason,omitempty"`
	CreatedAt         string `dynamodbav:"created_at"`
	UpdatedAt         string `dynamodbav:"updated_at"`
}

// PaymentDynamoRepository persists Payment aggregates in DynamoDB.
//
// Table requirements:
//   - PK: id (string)
//   - GSI: quote_id-index (PK: quote_id)
//   - GSI: gateway_payment_id-index (PK: gateway_payment_id)

type PaymentDynamoRepository struct {
	ddb       *dynamodb.Client
	tableName string
}

var _ interfaces.IPaymentRepository = (*PaymentDynamoRepository)(nil)

func NewPaymentDynamoRepository(ddb *dynamodb.Client) *PaymentDynamoRepository {
	return &PaymentDynamoRepository{
		ddb:       ddb,
		tableName: getenvDefault("PAYMENTS_TABLE", defaultPaymentsTableName),
	}
}

func (r *PaymentDynamoRepository) Create(ctx context.Context, p entities.Payment) (entities.Payment, error) {
	av, err := attributevalue.MarshalMap(toPaymentItem(p))
	if err != nil {
		return entities.Payment{}, err
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
		return entities.Payment{}, err
	}
	return p, nil
}

func (r *PaymentDynamoRepository) Save(ctx context.Context, p entities.Payment) (entities.Payment, error) {
	av, err := attributevalue.MarshalMap(toPaymentItem(p))
	if err != nil {
		return entities.Payment{}, err
	}

	_, err = r.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return entities.Payment{}, err
	}
	return p, nil
}

func (r *PaymentDynamoRepository) GetByID(ctx context.Context, id string) (entities.Payment, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return entities.Payment{}, err
	}
	if len(out.Item) == 0 {
		return entities.Payment{}, nil
	}

	var it paymentItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return entities.Payment{}, err
	}
	return fromPaymentItem(it), nil
}

func (r *PaymentDynamoRepository) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (entities.Payment, error) {
	out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(paymentsGatewayPaymentIDIndex),
		KeyConditionExpression: aws.String("gateway_payment_id = :gid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gid": &types.AttributeValueMemberS{Value: gatewayPaymentID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return entities.Payment{}, err
	}
	if len(out.Items) == 0 {
		return entities.Payment{}, nil
	}

	var it paymentItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return entities.Payment{}, err
	}
	return fromPaymentItem(it), nil
}

// ListByQuoteID returns every payment attempt for the quote, oldest first.
func (r *PaymentDynamoRepository) ListByQuoteID(ctx context.Context, quoteID string) ([]entities.Payment, error) {
	out, err := r.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(paymentsQuoteIDIndex),
		KeyConditionExpression: aws.String("quote_id = :qid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qid": &types.AttributeValueMemberS{Value: quoteID},
		},
	})
	if err != nil {
		return nil, err
	}

	payments := make([]entities.Payment, 0, len(out.Items))
	for _, raw := range out.Items {
		var it paymentItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, err
		}
		payments = append(payments, fromPaymentItem(it))
	}
	sort.Slice(payments, func(i, j int) bool {
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
	return payments, nil
}

func toPaymentItem(p entities.Payment) paymentItem {
	return paymentItem{
		ID:                p.ID,
		QuoteID:           p.QuoteID,
		ServiceOrderID:    p.ServiceOrderID,
		Status:            string(p.Status),
		Amount:            p.Amount.String(),
		Method:            string(p.Method),
		Receipt:           p.Receipt,
		CheckoutSessionID: p.CheckoutSessionID,
		CheckoutLink:      p.CheckoutLink,
		GatewayPaymentID:  p.GatewayPaymentID,
		ConfirmedAt:       formatOptionalTime(p.ConfirmedAt),
		RefundedAt:        formatOptionalTime(p.RefundedAt),
		RefundReason:      p.RefundReason,
		CreatedAt:         p.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromPaymentItem(it paymentItem) entities.Payment {
	amount, _ := decimal.NewFromString(it.Amount)
	createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, it.UpdatedAt)

	return entities.Payment{
		ID:                it.ID,
		QuoteID:           it.QuoteID,
		ServiceOrderID:    it.ServiceOrderID,
		Status:            entities.PaymentStatus(it.Status),
		Amount:            amount,
		Method:            entities.PaymentMethod(it.Method),
		Receipt:           it.Receipt,
		CheckoutSessionID: it.CheckoutSessionID,
		CheckoutLink:      it.CheckoutLink,
		GatewayPaymentID:  it.GatewayPaymentID,
		ConfirmedAt:       parseOptionalTime(it.ConfirmedAt),
		RefundedAt:        parseOptionalTime(it.RefundedAt),
		RefundReason:      it.RefundReason,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}
}
