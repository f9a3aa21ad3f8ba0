package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	pkgerrors "tasknote-backend/pkg/errors"
)

type mutationKind int

const (
	mutationCreate mutationKind = iota
	mutationUpdate
	mutationUpsert
	mutationDelete
)

// stagedMutation is one pending write. The resource name feeds the domain
// error message when the mutation loses a condition check.
type stagedMutation struct {
	kind         mutationKind
	table        string
	resource     string
	partitionKey string
	rowKey       string
	item         map[string]types.AttributeValue
	priorVersion int64
}

// UnitOfWork batches mutations and commits them on SubmitChanges. Staged
// writes are invisible to reads until committed; there is no
// read-your-own-writes inside a unit of work.
//
// The store guarantees all-or-nothing commit only for mutations sharing a
// partition key. SubmitChanges groups staged mutations by partition and
// commits one batch per group sequentially, so cross-partition operations
// (cascade deletes above all) are best-effort: a crash mid-way can leave
// orphaned relation rows. Each group is independently retryable.
type UnitOfWork struct {
	store  *TableStore
	logger *zap.Logger
	staged []stagedMutation
}

// StageCreate stages an insert that must not collide with an existing key.
func (uow *UnitOfWork) StageCreate(table, resource, partitionKey, rowKey string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewInvalidValueTypeError("failed to marshal "+resource, err)
	}
	uow.staged = append(uow.staged, stagedMutation{
		kind:         mutationCreate,
		table:        table,
		resource:     resource,
		partitionKey: partitionKey,
		rowKey:       rowKey,
		item:         av,
	})
	return nil
}

// StageUpdate stages a full-row overwrite guarded by the entity's prior
// version stamp. A concurrent writer surfaces as a concurrency conflict on
// submit, never as a silent overwrite.
func (uow *UnitOfWork) StageUpdate(table, resource, partitionKey, rowKey string, item any, priorVersion int64) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewInvalidValueTypeError("failed to marshal "+resource, err)
	}
	uow.staged = append(uow.staged, stagedMutation{
		kind:         mutationUpdate,
		table:        table,
		resource:     resource,
		partitionKey: partitionKey,
		rowKey:       rowKey,
		item:         av,
		priorVersion: priorVersion,
	})
	return nil
}

// StageUpsert stages an unconditional put. Relation rows use this: adding a
// share grant that already exists overwrites it in place, which keeps
// AddShare idempotent.
func (uow *UnitOfWork) StageUpsert(table, resource, partitionKey, rowKey string, item any) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewInvalidValueTypeError("failed to marshal "+resource, err)
	}
	uow.staged = append(uow.staged, stagedMutation{
		kind:         mutationUpsert,
		table:        table,
		resource:     resource,
		partitionKey: partitionKey,
		rowKey:       rowKey,
		item:         av,
	})
	return nil
}

// StageDelete stages a key delete. Deleting an absent row is a no-op.
func (uow *UnitOfWork) StageDelete(table, resource, partitionKey, rowKey string) {
	uow.staged = append(uow.staged, stagedMutation{
		kind:         mutationDelete,
		table:        table,
		resource:     resource,
		partitionKey: partitionKey,
		rowKey:       rowKey,
	})
}

// transactLimit is the DynamoDB TransactWriteItems size cap per call.
const transactLimit = 25

// SubmitChanges commits all staged mutations. Mutations are grouped by
// partition key in first-staged order; each group commits as one
// transactional batch (chunked at the store's transaction size limit).
// Store-native failures are translated here and nowhere else.
func (uow *UnitOfWork) SubmitChanges(ctx context.Context) error {
	if len(uow.staged) == 0 {
		return nil
	}

	groups := uow.groupByPartition()
	for _, group := range groups {
		for start := 0; start < len(group); start += transactLimit {
			end := start + transactLimit
			if end > len(group) {
				end = len(group)
			}
			if err := uow.commitGroup(ctx, group[start:end]); err != nil {
				return err
			}
		}
	}

	uow.logger.Debug("unit of work committed",
		zap.Int("mutations", len(uow.staged)),
		zap.Int("partitionGroups", len(groups)),
	)
	uow.staged = nil
	return nil
}

func (uow *UnitOfWork) groupByPartition() [][]stagedMutation {
	index := make(map[string]int)
	var groups [][]stagedMutation
	for _, m := range uow.staged {
		key := m.table + "/" + m.partitionKey
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

func (uow *UnitOfWork) commitGroup(ctx context.Context, group []stagedMutation) error {
	items := make([]types.TransactWriteItem, 0, len(group))
	for _, m := range group {
		item, err := buildTransactItem(m)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	const maxRetries = 3
	var lastErr error
	for retry := 0; retry < maxRetries; retry++ {
		_, err := uow.store.execute(func() (any, error) {
			return uow.store.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
				TransactItems: items,
			})
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if !isThrottle(err) {
			return translateCommitError(err, group)
		}

		backoff := time.Duration(retry*retry+1) * 100 * time.Millisecond
		uow.logger.Warn("batch commit throttled, retrying",
			zap.Error(err),
			zap.Int("retry", retry+1),
			zap.Duration("backoff", backoff),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return pkgerrors.NewUnknownStoreError("submit changes", lastErr)
}

func buildTransactItem(m stagedMutation) (types.TransactWriteItem, error) {
	switch m.kind {
	case mutationDelete:
		return types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: aws.String(m.table),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: m.partitionKey},
					"SK": &types.AttributeValueMemberS{Value: m.rowKey},
				},
			},
		}, nil

	case mutationUpsert:
		return types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(m.table),
				Item:      m.item,
			},
		}, nil

	case mutationCreate:
		cond := expression.Name("PK").AttributeNotExists()
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return types.TransactWriteItem{}, pkgerrors.NewUnknownStoreError("build create condition", err)
		}
		return types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 aws.String(m.table),
				Item:                      m.item,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		}, nil

	default: // mutationUpdate
		cond := expression.Name("Version").Equal(expression.Value(m.priorVersion))
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return types.TransactWriteItem{}, pkgerrors.NewUnknownStoreError("build update condition", err)
		}
		return types.TransactWriteItem{
			Put: &types.Put{
				TableName:                 aws.String(m.table),
				Item:                      m.item,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		}, nil
	}
}

// translateCommitError maps a failed transactional batch to a domain error
// kind using the per-item cancellation reasons.
func translateCommitError(err error, group []stagedMutation) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			if reason.Code == nil || *reason.Code == "None" {
				continue
			}
			m := stagedMutation{resource: "entity"}
			if i < len(group) {
				m = group[i]
			}
			switch *reason.Code {
			case "ConditionalCheckFailed":
				if m.kind == mutationCreate {
					return pkgerrors.NewDuplicateKeyError(m.resource).WithCause(err)
				}
				return pkgerrors.NewConcurrencyError(m.resource).WithCause(err)
			case "TransactionConflict":
				return pkgerrors.NewConcurrencyError(m.resource).WithCause(err)
			case "ValidationError":
				return pkgerrors.NewInvalidValueTypeError("store rejected "+m.resource+" attributes", err)
			}
		}
		return pkgerrors.NewUnknownStoreError("submit changes", err)
	}

	var conditional *types.ConditionalCheckFailedException
	if errors.As(err, &conditional) {
		return pkgerrors.NewConcurrencyError("entity").WithCause(err)
	}

	return translateStoreError("submit changes", err)
}

// translateStoreError maps non-transactional store failures. Reads go
// through here as well; the gateway is the single translation boundary.
func translateStoreError(operation string, err error) error {
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return pkgerrors.NewUnknownStoreError(operation, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "SerializationException":
			return pkgerrors.NewInvalidValueTypeError("store serialization mismatch", err)
		case "ValidationException":
			return pkgerrors.NewInvalidValueTypeError("store rejected request shape", err)
		}
	}

	return pkgerrors.NewUnknownStoreError(operation, err)
}

func isThrottle(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ProvisionedThroughputExceededException", "RequestLimitExceeded":
			return true
		}
	}
	return false
}
