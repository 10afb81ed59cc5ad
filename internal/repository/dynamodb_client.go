package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"medhistory-skill/internal/domain"
)

const (
	skPrefixAnswer = "ANSWER#"
	skMeta         = "META#"
	skSeq          = "SEQ#"
	pkPrefixCtr    = "COUNTER#"
	ttlDuration    = 90 * 24 * time.Hour // retention window for patient sessions
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store defines the patient-state operations consumed by the interview
// service and the export tooling.
type Store interface {
	NextSequence(ctx context.Context, name string) (int, error)
	SaveAnswer(ctx context.Context, sessionID, patientID int, questionID, questionTitle, answer, sessionStart string) error
	GetSessionAnswers(ctx context.Context, sessionID int) ([]domain.AnswerRecord, error)
}

// Client wraps a DynamoDB table holding counters, answers and session
// metadata in a single-table layout.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sessionPK returns the partition key for a patient session.
func sessionPK(sessionID int) string {
	return fmt.Sprintf("SESSION#%d", sessionID)
}

// answerSK returns the sort key for an answer. Re-answering the same question
// overwrites the previous value.
func answerSK(questionID string) string {
	return skPrefixAnswer + questionID
}

// ttlValue returns a Unix timestamp at the end of the retention window.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// NextSequence atomically increments and returns the named counter. Counters
// back the auto-assigned session and patient IDs.
func (c *Client) NextSequence(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("repository: NextSequence: name is required")
	}

	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pkPrefixCtr + name},
			"SK": &types.AttributeValueMemberS{Value: skSeq},
		},
		UpdateExpression: aws.String("ADD seq :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("repository: NextSequence %q: %w", name, err)
	}
	seq, err := intAttr(out.Attributes, "seq")
	if err != nil {
		return 0, fmt.Errorf("repository: NextSequence decode seq: %w", err)
	}
	return seq, nil
}

// PutAnswer persists a single answer record, replacing any previous answer to
// the same question.
func (c *Client) PutAnswer(ctx context.Context, rec domain.AnswerRecord) error {
	if rec.PK == "" || rec.SK == "" {
		return errors.New("repository: PutAnswer: PK and SK are required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      answerItem(rec),
	})
	if err != nil {
		return fmt.Errorf("repository: PutAnswer: %w", err)
	}
	return nil
}

// UpsertSessionMeta writes or replaces the session metadata record.
func (c *Client) UpsertSessionMeta(ctx context.Context, meta domain.SessionMeta) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      metaItem(meta),
	})
	if err != nil {
		return fmt.Errorf("repository: UpsertSessionMeta: %w", err)
	}
	return nil
}

// SaveTurn writes the answer and the refreshed session metadata in one
// transaction so a session never records an answer without its metadata.
func (c *Client) SaveTurn(ctx context.Context, rec domain.AnswerRecord, meta domain.SessionMeta) error {
	if rec.PK == "" || rec.SK == "" {
		return errors.New("repository: SaveTurn: answer PK and SK are required")
	}
	if meta.PK == "" || meta.SK == "" {
		return errors.New("repository: SaveTurn: meta PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      answerItem(rec),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// SaveAnswer persists a validated question/answer pair and updates the
// session metadata.
func (c *Client) SaveAnswer(ctx context.Context, sessionID, patientID int, questionID, questionTitle, answer, sessionStart string) error {
	rec := NewAnswerRecord(sessionID, patientID, questionID, questionTitle, answer)
	meta := NewSessionMeta(sessionID, patientID, sessionStart)
	if err := c.SaveTurn(ctx, rec, meta); err != nil {
		return fmt.Errorf("repository: SaveAnswer: %w", err)
	}
	return nil
}

// GetSessionAnswers queries all ANSWER# items for a session in question order.
func (c *Client) GetSessionAnswers(ctx context.Context, sessionID int) ([]domain.AnswerRecord, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixAnswer},
		},
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetSessionAnswers query: %w", err)
	}

	recs := make([]domain.AnswerRecord, 0, len(out.Items))
	for _, item := range out.Items {
		rec, err := itemToAnswer(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetSessionAnswers unmarshal: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// NewAnswerRecord constructs an AnswerRecord with keys and TTL set.
func NewAnswerRecord(sessionID, patientID int, questionID, questionTitle, answer string) domain.AnswerRecord {
	return domain.AnswerRecord{
		PK:            sessionPK(sessionID),
		SK:            answerSK(questionID),
		SessionID:     sessionID,
		PatientID:     patientID,
		QuestionID:    questionID,
		QuestionTitle: questionTitle,
		Answer:        answer,
		AnsweredAt:    time.Now().UTC().Format(time.RFC3339),
		TTL:           ttlValue(),
	}
}

// NewSessionMeta constructs a SessionMeta record.
func NewSessionMeta(sessionID, patientID int, sessionStart string) domain.SessionMeta {
	return domain.SessionMeta{
		PK:           sessionPK(sessionID),
		SK:           skMeta,
		SessionID:    sessionID,
		PatientID:    patientID,
		SessionStart: sessionStart,
		LastActivity: time.Now().UTC().Format(time.RFC3339),
		TTL:          ttlValue(),
	}
}

// itemToAnswer converts a DynamoDB attribute map to an AnswerRecord.
func itemToAnswer(item map[string]types.AttributeValue) (domain.AnswerRecord, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	questionID, err := strAttr(item, "questionId")
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	answer, err := strAttr(item, "answer")
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	questionTitle, _ := strAttr(item, "questionTitle") // allow empty
	answeredAt, _ := strAttr(item, "answeredAt")       // allow empty
	sessionID, _ := intAttr(item, "sessionId")
	patientID, _ := intAttr(item, "patientId")

	return domain.AnswerRecord{
		PK:            pk,
		SK:            sk,
		SessionID:     sessionID,
		PatientID:     patientID,
		QuestionID:    questionID,
		QuestionTitle: questionTitle,
		Answer:        answer,
		AnsweredAt:    answeredAt,
	}, nil
}

func answerItem(rec domain.AnswerRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: rec.PK},
		"SK":            &types.AttributeValueMemberS{Value: rec.SK},
		"sessionId":     &types.AttributeValueMemberN{Value: strconv.Itoa(rec.SessionID)},
		"patientId":     &types.AttributeValueMemberN{Value: strconv.Itoa(rec.PatientID)},
		"questionId":    &types.AttributeValueMemberS{Value: rec.QuestionID},
		"questionTitle": &types.AttributeValueMemberS{Value: rec.QuestionTitle},
		"answer":        &types.AttributeValueMemberS{Value: rec.Answer},
		"answeredAt":    &types.AttributeValueMemberS{Value: rec.AnsweredAt},
		"ttl":           &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
	}
}

func metaItem(meta domain.SessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: meta.PK},
		"SK":           &types.AttributeValueMemberS{Value: meta.SK},
		"sessionId":    &types.AttributeValueMemberN{Value: strconv.Itoa(meta.SessionID)},
		"patientId":    &types.AttributeValueMemberN{Value: strconv.Itoa(meta.PatientID)},
		"sessionStart": &types.AttributeValueMemberS{Value: meta.SessionStart},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
