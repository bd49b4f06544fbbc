package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Proton-105/birthday-bot/internal/domain"
)

// DynamoAPI is the part of the DynamoDB client used by the stores.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type birthdayItem struct {
	ChatID  string `dynamodbav:"chat_id"`
	NameKey string `dynamodbav:"name_key"`
	Name    string `dynamodbav:"name"`
	Day     int    `dynamodbav:"birthday_day"`
	Month   int    `dynamodbav:"birthday_month"`
	Year    *int   `dynamodbav:"birthday_year,omitempty"`
}

func (it birthdayItem) birthday() domain.Birthday {
	return domain.Birthday{Name: it.Name, Day: it.Day, Month: it.Month, Year: it.Year}
}

// DynamoBirthdayStore keeps birthdays in a table keyed by chat_id (hash) and name_key (range).
type DynamoBirthdayStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoBirthdayStore(client DynamoAPI, table string) *DynamoBirthdayStore {
	return &DynamoBirthdayStore{client: client, table: table}
}

func birthdayItemKey(chatID, name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"chat_id":  &types.AttributeValueMemberS{Value: chatID},
		"name_key": &types.AttributeValueMemberS{Value: domain.NameKey(name)},
	}
}

func (s *DynamoBirthdayStore) LoadByChat(ctx context.Context, chatID string) ([]domain.Birthday, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("chat_id = :chat"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":chat": &types.AttributeValueMemberS{Value: chatID},
		},
	})

	out := make([]domain.Birthday, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query birthdays by chat: %w", err)
		}

		var items []birthdayItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal birthdays: %w", err)
		}
		for _, it := range items {
			out = append(out, it.birthday())
		}
	}

	sortBirthdays(out)
	return out, nil
}

// LoadByDay scans the whole table; the key schema has no date component.
func (s *DynamoBirthdayStore) LoadByDay(ctx context.Context, day time.Time) ([]domain.ChatBirthday, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.table),
		FilterExpression: aws.String("birthday_day = :day AND birthday_month = :month"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":day":   &types.AttributeValueMemberN{Value: strconv.Itoa(day.Day())},
			":month": &types.AttributeValueMemberN{Value: strconv.Itoa(int(day.Month()))},
		},
	})

	out := make([]domain.ChatBirthday, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan birthdays by day: %w", err)
		}

		var items []birthdayItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal birthdays: %w", err)
		}
		for _, it := range items {
			out = append(out, domain.ChatBirthday{ChatID: it.ChatID, Birthday: it.birthday()})
		}
	}
	return out, nil
}

func (s *DynamoBirthdayStore) Get(ctx context.Context, chatID, name string) (*domain.Birthday, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       birthdayItemKey(chatID, name),
	})
	if err != nil {
		return nil, fmt.Errorf("get birthday item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var it birthdayItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal birthday: %w", err)
	}
	b := it.birthday()
	return &b, nil
}

func (s *DynamoBirthdayStore) Store(ctx context.Context, chatID string, birthday domain.Birthday) error {
	item, err := attributevalue.MarshalMap(birthdayItem{
		ChatID:  chatID,
		NameKey: birthday.Key(),
		Name:    birthday.Name,
		Day:     birthday.Day,
		Month:   birthday.Month,
		Year:    birthday.Year,
	})
	if err != nil {
		return fmt.Errorf("marshal birthday: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put birthday item: %w", err)
	}
	return nil
}

func (s *DynamoBirthdayStore) Delete(ctx context.Context, chatID, name string) (bool, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.table),
		Key:          birthdayItemKey(chatID, name),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("delete birthday item: %w", err)
	}
	return len(out.Attributes) > 0, nil
}

type userItem struct {
	ChatID       string `dynamodbav:"chat_id"`
	UserName     string `dynamodbav:"user_name"`
	FirstName    string `dynamodbav:"first_name"`
	LastName     string `dynamodbav:"last_name"`
	ReminderHour int    `dynamodbav:"reminder_hour"`
}

func (it userItem) user() domain.User {
	return domain.User{
		ChatID:       it.ChatID,
		UserName:     it.UserName,
		FirstName:    it.FirstName,
		LastName:     it.LastName,
		ReminderHour: it.ReminderHour,
	}
}

// DynamoUserStore keeps preferences in a table keyed by chat_id with a
// global secondary index on reminder_hour.
type DynamoUserStore struct {
	client    DynamoAPI
	table     string
	hourIndex string
}

func NewDynamoUserStore(client DynamoAPI, table, hourIndex string) *DynamoUserStore {
	return &DynamoUserStore{client: client, table: table, hourIndex: hourIndex}
}

func userItemKey(chatID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"chat_id": &types.AttributeValueMemberS{Value: chatID},
	}
}

func (s *DynamoUserStore) Get(ctx context.Context, chatID string) (*domain.User, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       userItemKey(chatID),
	})
	if err != nil {
		return nil, fmt.Errorf("get user item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrUserNotFound
	}

	var it userItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	u := it.user()
	return &u, nil
}

func (s *DynamoUserStore) LoadByReminderHour(ctx context.Context, hour int) ([]domain.User, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(s.hourIndex),
		KeyConditionExpression: aws.String("reminder_hour = :hour"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hour": &types.AttributeValueMemberN{Value: strconv.Itoa(hour)},
		},
	})

	var out []domain.User
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query users by reminder hour: %w", err)
		}

		var items []userItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		for _, it := range items {
			out = append(out, it.user())
		}
	}
	return out, nil
}

func (s *DynamoUserStore) Store(ctx context.Context, user domain.User) error {
	item, err := attributevalue.MarshalMap(userItem{
		ChatID:       user.ChatID,
		UserName:     user.UserName,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		ReminderHour: user.ReminderHour,
	})
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put user item: %w", err)
	}
	return nil
}

func (s *DynamoUserStore) UpdateReminderHour(ctx context.Context, chatID string, hour int) error {
	if _, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              userItemKey(chatID),
		UpdateExpression: aws.String("SET reminder_hour = :hour"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hour": &types.AttributeValueMemberN{Value: strconv.Itoa(hour)},
		},
	}); err != nil {
		return fmt.Errorf("update reminder hour: %w", err)
	}
	return nil
}
