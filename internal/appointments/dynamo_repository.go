package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/medical-appointments/internal/apperr"
	"github.com/wolfman30/medical-appointments/internal/appointment"
	"github.com/wolfman30/medical-appointments/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoRepository persists appointments in a DynamoDB table keyed by
// appointmentId with a secondary index on insuredId.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	indexName string
	logger    *logging.Logger
	now       func() time.Time
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided DynamoDB client.
func NewDynamoRepository(client dynamoAPI, tableName, indexName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if indexName == "" {
		indexName = "InsuredIdIndex"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
		now:       time.Now,
	}
}

// Save writes the full record. Repeating it with the same appointment yields
// the same item.
func (r *DynamoRepository) Save(ctx context.Context, appt *appointment.Appointment) error {
	if appt == nil {
		return errors.New("appointments: appointment cannot be nil")
	}
	item, err := attributevalue.MarshalMap(appt.ToRecord())
	if err != nil {
		return fmt.Errorf("appointments: failed to marshal appointment: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return storeError("failed to save appointment", err)
	}
	return nil
}

// FindByID returns nil without error when the appointment does not exist.
func (r *DynamoRepository) FindByID(ctx context.Context, appointmentID string) (*appointment.Appointment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       keyFor(appointmentID),
	})
	if err != nil {
		return nil, storeError("failed to fetch appointment", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec appointment.Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("appointments: failed to decode appointment: %w", err)
	}
	return appointment.FromRecord(rec), nil
}

func (r *DynamoRepository) FindByIDOrFail(ctx context.Context, appointmentID string) (*appointment.Appointment, error) {
	return findOrFail(ctx, r, appointmentID)
}

// FindByInsuredID queries the insured index, following pagination.
func (r *DynamoRepository) FindByInsuredID(ctx context.Context, insuredID string) ([]*appointment.Appointment, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.indexName),
		KeyConditionExpression: aws.String("insuredId = :insuredId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":insuredId": &types.AttributeValueMemberS{Value: insuredID},
		},
	}

	var out []*appointment.Appointment
	for {
		page, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, storeError("failed to query appointments", err)
		}
		var recs []appointment.Record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("appointments: failed to decode appointments: %w", err)
		}
		for _, rec := range recs {
			out = append(out, appointment.FromRecord(rec))
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
	return out, nil
}

// UpdateStatus moves an appointment to status. The write is conditional:
// the item must exist and be pending or already at the target status, so a
// completed appointment never regresses. Replaying a completion keeps the
// original updatedAt.
func (r *DynamoRepository) UpdateStatus(ctx context.Context, appointmentID string, status appointment.Status) error {
	values := map[string]types.AttributeValue{
		":status":  &types.AttributeValueMemberS{Value: string(status)},
		":pending": &types.AttributeValueMemberS{Value: string(appointment.StatusPending)},
	}
	expression := "SET #status = :status"
	if status != appointment.StatusPending {
		values[":updatedAt"] = &types.AttributeValueMemberS{Value: appointment.FormatTime(r.now())}
		expression = "SET #status = :status, updatedAt = if_not_exists(updatedAt, :updatedAt)"
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.tableName),
		Key:                                 keyFor(appointmentID),
		UpdateExpression:                    aws.String(expression),
		ConditionExpression:                 aws.String("attribute_exists(appointmentId) AND (#status = :pending OR #status = :status)"),
		ExpressionAttributeNames:            map[string]string{"#status": "status"},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if condErr.Item == nil {
			return apperr.AppointmentNotFound(appointmentID)
		}
		var current appointment.Record
		_ = attributevalue.UnmarshalMap(condErr.Item, &current)
		r.logger.Warn("rejected status regression",
			"appointment_id", appointmentID,
			"current_status", current.Status,
			"requested_status", status,
		)
		return apperr.InvalidTransition(appointmentID, string(current.Status), string(status))
	}
	return storeError(fmt.Sprintf("failed to update appointment %s", appointmentID), err)
}

func (r *DynamoRepository) Exists(ctx context.Context, appointmentID string) (bool, error) {
	appt, err := r.FindByID(ctx, appointmentID)
	return appt != nil, err
}

func keyFor(appointmentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"appointmentId": &types.AttributeValueMemberS{Value: appointmentID},
	}
}

func storeError(message string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout("dynamodb", err)
	}
	return apperr.Infrastructure(apperr.CodeUnavailable, "appointments: "+message, err)
}
