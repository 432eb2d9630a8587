// Package dynamo implements store.Store on DynamoDB-compatible backends
// (AWS DynamoDB, ScyllaDB Alternator).
//
// Email uniqueness is enforced with a second table holding one constraint
// item per email. Every write that adds, moves or removes an email does so in
// the same transaction as the user item, so the two tables never disagree.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/userd"
	"github.com/unkn0wn-root/userd/store"
)

// API is the subset of *dynamodb.Client the Store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

const constraintSK = "CONSTRAINT"

// item is the stored shape of a user.
type item struct {
	ID    string `dynamodbav:"id"`
	Name  string `dynamodbav:"name"`
	Email string `dynamodbav:"email"`
}

func toItem(u userd.User) item { return item{ID: u.ID.String(), Name: u.Name, Email: u.Email} }

func (it item) user() (userd.User, error) {
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return userd.User{}, fmt.Errorf("dynamo: stored id %q: %w", it.ID, err)
	}
	return userd.User{ID: id, Name: it.Name, Email: it.Email}, nil
}

// Store provides user persistence on DynamoDB.
type Store struct {
	client API
	config Config
}

var _ store.Store = (*Store)(nil)

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{client: client, config: config}
}

func userKey(id uuid.UUID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id.String()},
	}
}

// constraintPK is the partition key of the uniqueness item for email.
func constraintPK(email string) string { return "email#" + email }

func constraintKey(email string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: constraintPK(email)},
	}
}

func (s *Store) putConstraint(id uuid.UUID, email string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.UniqueTable),
			Item: map[string]types.AttributeValue{
				"pk":      &types.AttributeValueMemberS{Value: constraintPK(email)},
				"sk":      &types.AttributeValueMemberS{Value: constraintSK},
				"user_id": &types.AttributeValueMemberS{Value: id.String()},
			},
			// Fails if another user already holds this email
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}
}

func (s *Store) deleteConstraint(email string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(s.config.UniqueTable),
			Key:       constraintKey(email),
		},
	}
}

// Insert writes the user and its email constraint in one transaction.
func (s *Store) Insert(ctx context.Context, u userd.User) error {
	av, err := attributevalue.MarshalMap(toItem(u))
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	items := []types.TransactWriteItem{
		s.putConstraint(u.ID, u.Email),
		{
			Put: &types.Put{
				TableName:           aws.String(s.config.Table),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		},
	}
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return mapTransactionError(err, 1)
}

// GetAll paginates a full table scan. The scan is strongly consistent: the
// service re-reads the list right after a write to refill the cache.
func (s *Store) GetAll(ctx context.Context) ([]userd.User, error) {
	users := make([]userd.User, 0)
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      aws.String(s.config.Table),
		ConsistentRead: aws.Bool(true),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.config.Table, err)
		}
		var its []item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &its); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		for _, it := range its {
			u, err := it.user()
			if err != nil {
				return nil, err
			}
			users = append(users, u)
		}
	}
	return users, nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (userd.User, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table),
		Key:            userKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return userd.User{}, false, err
	}
	if out.Item == nil {
		return userd.User{}, false, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return userd.User{}, false, fmt.Errorf("unmarshal user: %w", err)
	}
	u, err := it.user()
	if err != nil {
		return userd.User{}, false, err
	}
	return u, true, nil
}

// GetByEmail resolves the email through its constraint item, then reads the
// owner. Both reads are strongly consistent.
func (s *Store) GetByEmail(ctx context.Context, email string) (userd.User, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.UniqueTable),
		Key:            constraintKey(email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return userd.User{}, false, err
	}
	if out.Item == nil {
		return userd.User{}, false, nil
	}
	owner, ok := out.Item["user_id"].(*types.AttributeValueMemberS)
	if !ok {
		return userd.User{}, false, fmt.Errorf("dynamo: constraint %s has no user_id", constraintPK(email))
	}
	id, err := uuid.Parse(owner.Value)
	if err != nil {
		return userd.User{}, false, fmt.Errorf("dynamo: constraint owner %q: %w", owner.Value, err)
	}
	return s.GetByID(ctx, id)
}

// Update sets the masked attributes. When the email changes, the old
// constraint is released and the new one claimed in the same transaction.
func (s *Store) Update(ctx context.Context, id uuid.UUID, p userd.PartialUser) error {
	expr, names, values, err := updateExpression(p)
	if err != nil {
		return err
	}

	if !p.Mask().Has(userd.FieldEmail) {
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(s.config.Table),
			Key:                       userKey(id),
			UpdateExpression:          aws.String(expr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		if err != nil {
			return fmt.Errorf("update user %s: %w", id, err)
		}
		return nil
	}

	current, found, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var items []types.TransactWriteItem
	if !found || current.Email != *p.Email {
		if found && current.Email != "" {
			items = append(items, s.deleteConstraint(current.Email))
		}
		items = append(items, s.putConstraint(id, *p.Email))
	}
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 aws.String(s.config.Table),
			Key:                       userKey(id),
			UpdateExpression:          aws.String(expr),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		},
	})

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	return mapTransactionError(err, -1)
}

// Delete removes the user and releases its email. A missing user is a no-op.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	current, found, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	items := []types.TransactWriteItem{
		{
			Delete: &types.Delete{
				TableName: aws.String(s.config.Table),
				Key:       userKey(id),
			},
		},
	}
	if current.Email != "" {
		items = append(items, s.deleteConstraint(current.Email))
	}
	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// EnsureSchema creates both tables on demand (PAY_PER_REQUEST) and waits
// for them to become active.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, t := range []struct{ name, key string }{
		{s.config.Table, "id"},
		{s.config.UniqueTable, "pk"},
	} {
		_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(t.name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(t.key), KeyType: types.KeyTypeHash},
			},
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(t.key), AttributeType: types.ScalarAttributeTypeS},
			},
			BillingMode: types.BillingModePayPerRequest,
		})
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}

		waiter := dynamodb.NewTableExistsWaiter(s.client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(t.name)}, s.config.SchemaWait); err != nil {
			return fmt.Errorf("wait for table %s: %w", t.name, err)
		}
	}
	return nil
}

// Ping describes the users table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.config.Table)})
	return err
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

// updateExpression builds a SET expression for the masked attributes.
func updateExpression(p userd.PartialUser) (string, map[string]string, map[string]types.AttributeValue, error) {
	m := p.Mask()
	if m.Empty() {
		return "", nil, nil, store.ErrEmptyUpdate
	}
	var sets []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	if m.Has(userd.FieldName) {
		names["#name"] = "name"
		values[":name"] = &types.AttributeValueMemberS{Value: *p.Name}
		sets = append(sets, "#name = :name")
	}
	if m.Has(userd.FieldEmail) {
		names["#email"] = "email"
		values[":email"] = &types.AttributeValueMemberS{Value: *p.Email}
		sets = append(sets, "#email = :email")
	}
	return "SET " + strings.Join(sets, ", "), names, values, nil
}

// mapTransactionError maps a cancelled transaction to ErrDuplicateEmail when
// a constraint put failed. userPutIndex is the index of the user put whose
// condition guards against id reuse (-1 if none).
func mapTransactionError(err error, userPutIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i == userPutIndex {
					return fmt.Errorf("dynamo: user id already exists: %w", err)
				}
				return store.ErrDuplicateEmail
			}
		}
	}
	return err
}
