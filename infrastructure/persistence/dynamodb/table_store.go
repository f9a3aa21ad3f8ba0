package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"tasknote-backend/application/ports"
	pkgerrors "tasknote-backend/pkg/errors"
)

// StoreClient is the slice of the DynamoDB API the gateway touches.
// *dynamodb.Client satisfies it; tests substitute an in-process fake.
type StoreClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// TableStore is the read side of the table store gateway: point lookups,
// partition queries and filtered scans against named tables. Together with
// UnitOfWork it is the only component that talks to the physical store, and
// the only place store-native failures are translated into domain error
// kinds.
type TableStore struct {
	client  StoreClient
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewTableStore creates a table store gateway around a DynamoDB client. All
// store calls run through a circuit breaker so a misbehaving table service
// sheds load instead of piling up blocked requests.
func NewTableStore(client StoreClient, logger *zap.Logger) *TableStore {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "table-store",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &TableStore{client: client, breaker: breaker, logger: logger}
}

// NewUnitOfWork starts an empty batch of staged mutations against this
// store. Each repository operation uses its own unit of work.
func (s *TableStore) NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{store: s, logger: s.logger}
}

func (s *TableStore) execute(fn func() (any, error)) (any, error) {
	return s.breaker.Execute(fn)
}

// GetItem is a point lookup by partition and row key. Absence is a valid
// outcome and comes back as (nil, nil).
func GetItem[T any](ctx context.Context, s *TableStore, table, partitionKey, rowKey string) (*T, error) {
	out, err := s.execute(func() (any, error) {
		return s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(table),
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: partitionKey},
				"SK": &types.AttributeValueMemberS{Value: rowKey},
			},
		})
	})
	if err != nil {
		return nil, translateStoreError("get "+table, err)
	}

	result := out.(*dynamodb.GetItemOutput)
	if result.Item == nil {
		return nil, nil
	}

	var item T
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewInvalidValueTypeError("failed to unmarshal item from "+table, err)
	}
	return &item, nil
}

// QueryPartition returns every row of one logical partition.
func QueryPartition[T any](ctx context.Context, s *TableStore, table, partitionKey string) ([]T, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(partitionKey))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, pkgerrors.NewUnknownStoreError("build query expression", err)
	}

	var items []T
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.execute(func() (any, error) {
			return s.client.Query(ctx, &dynamodb.QueryInput{
				TableName:                 aws.String(table),
				KeyConditionExpression:    expr.KeyCondition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
				ExclusiveStartKey:         startKey,
			})
		})
		if err != nil {
			return nil, translateStoreError("query "+table, err)
		}

		result := out.(*dynamodb.QueryOutput)
		for _, raw := range result.Items {
			var item T
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, pkgerrors.NewInvalidValueTypeError("failed to unmarshal item from "+table, err)
			}
			items = append(items, item)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		startKey = result.LastEvaluatedKey
	}
	return items, nil
}

// ScanWhere scans a table with an equality-filter criteria. An empty
// criteria is a full, restartable scan. Scans are the fallback for lookups
// that cross partitions (reverse share lookups, container resolution).
func ScanWhere[T any](ctx context.Context, s *TableStore, table string, criteria ports.Criteria) ([]T, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(table)}

	if !criteria.IsEmpty() {
		cond, err := buildFilter(criteria)
		if err != nil {
			return nil, err
		}
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, pkgerrors.NewUnknownStoreError("build scan expression", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var items []T
	for {
		out, err := s.execute(func() (any, error) {
			return s.client.Scan(ctx, input)
		})
		if err != nil {
			return nil, translateStoreError("scan "+table, err)
		}

		result := out.(*dynamodb.ScanOutput)
		for _, raw := range result.Items {
			var item T
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, pkgerrors.NewInvalidValueTypeError("failed to unmarshal item from "+table, err)
			}
			items = append(items, item)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return items, nil
}

// FindFirst returns the first row matching the criteria, or nil when the
// scan finds nothing.
func FindFirst[T any](ctx context.Context, s *TableStore, table string, criteria ports.Criteria) (*T, error) {
	items, err := ScanWhere[T](ctx, s, table, criteria)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func buildFilter(criteria ports.Criteria) (expression.ConditionBuilder, error) {
	var cond expression.ConditionBuilder
	for i, f := range criteria.Filters {
		eq := expression.Name(f.Field).Equal(expression.Value(f.Value))
		if i == 0 {
			cond = eq
		} else {
			cond = cond.And(eq)
		}
	}
	return cond, nil
}
