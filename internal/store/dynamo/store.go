// Package dynamo implements the session and chunk stores on DynamoDB.
//
// Sessions table: partition key session_id (S).
// Chunks table:   partition key session_id (S), sort key chunk_order (N).
//
// (session_id, chunk_order) uniqueness and the pending -> uploaded transition
// are enforced with condition expressions, so concurrent confirmations resolve
// at the table rather than in process.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"ai-speech-upload-service/internal/models"
	"ai-speech-upload-service/internal/store"
)

// API is the subset of the DynamoDB client the stores use.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

func isConditionFailed(err error) (*types.ConditionalCheckFailedException, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf, true
	}
	return nil, false
}

func describe(ctx context.Context, client API, table string) error {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	return err
}

func timeValue(t time.Time) (types.AttributeValue, error) {
	return attributevalue.Marshal(t)
}

// SessionStore implements store.SessionStore.
type SessionStore struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewSessionStore(client API, tableName string) *SessionStore {
	return &SessionStore{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionStore) IsReady(ctx context.Context) error {
	return describe(ctx, s.client, s.tableName)
}

func (s *SessionStore) Name() string {
	return "SessionStore[" + s.tableName + "]"
}

func (s *SessionStore) CreateSession(ctx context.Context, session models.UploadSession) error {
	item, err := attributevalue.MarshalMap(session)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(session_id)"),
	})
	if _, ok := isConditionFailed(err); ok {
		return store.ErrSessionExists
	}
	return err
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID string) (*models.UploadSession, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, store.ErrSessionNotFound
	}

	var session models.UploadSession
	if err := attributevalue.UnmarshalMap(out.Item, &session); err != nil {
		return nil, err
	}
	if _, err := models.ParseSessionStatus(string(session.Status)); err != nil {
		return nil, fmt.Errorf("database contains invalid status: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) TransitionSession(
	ctx context.Context,
	sessionID string,
	from, to models.SessionStatus,
	update store.SessionUpdate,
) (*models.UploadSession, error) {
	now, err := timeValue(s.now())
	if err != nil {
		return nil, err
	}

	expr := "SET #st = :to, updated_at = :now"
	values := map[string]types.AttributeValue{
		":to":   &types.AttributeValueMemberS{Value: string(to)},
		":from": &types.AttributeValueMemberS{Value: string(from)},
		":now":  now,
	}
	if update.TotalChunks > 0 {
		expr += ", total_chunks = :total"
		values[":total"] = &types.AttributeValueMemberN{Value: strconv.Itoa(update.TotalChunks)}
	}
	if update.ArtifactPath != "" {
		expr += ", artifact_path = :artifact"
		values[":artifact"] = &types.AttributeValueMemberS{Value: update.ArtifactPath}
	}
	if update.FailReason != "" {
		expr += ", fail_reason = :reason"
		values[":reason"] = &types.AttributeValueMemberS{Value: update.FailReason}
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
		UpdateExpression:                    aws.String(expr),
		ConditionExpression:                 aws.String("attribute_exists(session_id) AND #st = :from"),
		ExpressionAttributeNames:            map[string]string{"#st": "status"},
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := isConditionFailed(err); ok {
		if ccf.Item == nil {
			return nil, store.ErrSessionNotFound
		}
		var current models.UploadSession
		if uerr := attributevalue.UnmarshalMap(ccf.Item, &current); uerr != nil {
			return nil, store.ErrStatusConflict
		}
		return &current, store.ErrStatusConflict
	}
	if err != nil {
		return nil, err
	}

	var session models.UploadSession
	if err := attributevalue.UnmarshalMap(out.Attributes, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ChunkStore implements store.ChunkStore.
type ChunkStore struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewChunkStore(client API, tableName string) *ChunkStore {
	return &ChunkStore{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ChunkStore) IsReady(ctx context.Context) error {
	return describe(ctx, s.client, s.tableName)
}

func (s *ChunkStore) Name() string {
	return "ChunkStore[" + s.tableName + "]"
}

func chunkKey(sessionID string, order int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"session_id":  &types.AttributeValueMemberS{Value: sessionID},
		"chunk_order": &types.AttributeValueMemberN{Value: strconv.Itoa(order)},
	}
}

func (s *ChunkStore) RegisterPending(ctx context.Context, slot models.ChunkSlot) (models.ChunkSlot, error) {
	now, err := timeValue(s.now())
	if err != nil {
		return models.ChunkSlot{}, err
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      chunkKey(slot.SessionID, slot.Order),
		UpdateExpression:         aws.String("SET #st = :pending, storage_path = :path, created_at = if_not_exists(created_at, :now)"),
		ConditionExpression:      aws.String("attribute_not_exists(session_id) OR #st = :pending"),
		ExpressionAttributeNames: map[string]string{"#st": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(models.ChunkPending)},
			":path":    &types.AttributeValueMemberS{Value: slot.StoragePath},
			":now":     now,
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := isConditionFailed(err); ok {
		// Already uploaded; the stored slot wins.
		var existing models.ChunkSlot
		if uerr := attributevalue.UnmarshalMap(ccf.Item, &existing); uerr != nil {
			return models.ChunkSlot{}, uerr
		}
		return existing, nil
	}
	if err != nil {
		return models.ChunkSlot{}, err
	}

	var stored models.ChunkSlot
	if err := attributevalue.UnmarshalMap(out.Attributes, &stored); err != nil {
		return models.ChunkSlot{}, err
	}
	return stored, nil
}

func (s *ChunkStore) MarkUploaded(ctx context.Context, slot models.ChunkSlot) (models.ChunkSlot, error) {
	now, err := timeValue(s.now())
	if err != nil {
		return models.ChunkSlot{}, err
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 chunkKey(slot.SessionID, slot.Order),
		UpdateExpression:    aws.String("SET #st = :uploaded, storage_path = :path, uploaded_at = :now, created_at = if_not_exists(created_at, :now)"),
		ConditionExpression: aws.String("attribute_not_exists(session_id) OR #st = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uploaded": &types.AttributeValueMemberS{Value: string(models.ChunkUploaded)},
			":pending":  &types.AttributeValueMemberS{Value: string(models.ChunkPending)},
			":path":     &types.AttributeValueMemberS{Value: slot.StoragePath},
			":now":      now,
		},
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if ccf, ok := isConditionFailed(err); ok {
		var existing models.ChunkSlot
		if uerr := attributevalue.UnmarshalMap(ccf.Item, &existing); uerr != nil {
			return models.ChunkSlot{}, uerr
		}
		return existing, store.ErrAlreadyUploaded
	}
	if err != nil {
		return models.ChunkSlot{}, err
	}

	var stored models.ChunkSlot
	if err := attributevalue.UnmarshalMap(out.Attributes, &stored); err != nil {
		return models.ChunkSlot{}, err
	}
	return stored, nil
}

func (s *ChunkStore) GetChunk(ctx context.Context, sessionID string, order int) (*models.ChunkSlot, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            chunkKey(sessionID, order),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, store.ErrChunkNotFound
	}

	var slot models.ChunkSlot
	if err := attributevalue.UnmarshalMap(out.Item, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

func (s *ChunkStore) ListChunks(ctx context.Context, sessionID string) ([]models.ChunkSlot, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("session_id = :s"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead: aws.Bool(true),
	})

	var slots []models.ChunkSlot
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query chunks: %w", err)
		}
		var batch []models.ChunkSlot
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, err
		}
		slots = append(slots, batch...)
	}
	return slots, nil
}
