// Package memory holds in-process implementations of the persistence ports.
// They mirror the table store's semantics (absence as nil, version-guarded
// overwrites, duplicate-key detection, relation rows) without any backing
// service, which makes them the substrate for application service tests.
package memory

import (
	"strings"
	"sync"

	"tasknote-backend/domain/core/entities"
)

// Store is a mutex-guarded set of tables. Entity rows are stored flat, the
// way the real store persists them: relation-derived fields (Owner, Share,
// Notes, Container) never live on the row and are reconstructed from the
// relation tables on load.
type Store struct {
	mu             sync.RWMutex
	users          map[string]entities.User
	taskLists      map[string]entities.TaskList
	notes          map[string]entities.Note
	taskListShares map[string]map[string]struct{}
	noteShares     map[string]map[string]struct{}
	taskListNotes  map[string]map[string]struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:          make(map[string]entities.User),
		taskLists:      make(map[string]entities.TaskList),
		notes:          make(map[string]entities.Note),
		taskListShares: make(map[string]map[string]struct{}),
		noteShares:     make(map[string]map[string]struct{}),
		taskListNotes:  make(map[string]map[string]struct{}),
	}
}

// rowKeyOf builds the internal map key for an entity row. The NUL separator
// cannot occur in either component.
func rowKeyOf(partitionKey, rowKey string) string {
	return partitionKey + "\x00" + rowKey
}

func splitRowKey(key string) (string, string) {
	pk, sk, _ := strings.Cut(key, "\x00")
	return pk, sk
}

func addRelation(table map[string]map[string]struct{}, partitionKey, rowKey string) {
	partition, ok := table[partitionKey]
	if !ok {
		partition = make(map[string]struct{})
		table[partitionKey] = partition
	}
	partition[rowKey] = struct{}{}
}

func removeRelation(table map[string]map[string]struct{}, partitionKey, rowKey string) {
	if partition, ok := table[partitionKey]; ok {
		delete(partition, rowKey)
		if len(partition) == 0 {
			delete(table, partitionKey)
		}
	}
}

func hasRelation(table map[string]map[string]struct{}, partitionKey, rowKey string) bool {
	partition, ok := table[partitionKey]
	if !ok {
		return false
	}
	_, ok = partition[rowKey]
	return ok
}

func relationRowKeys(table map[string]map[string]struct{}, partitionKey string) []string {
	partition, ok := table[partitionKey]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(partition))
	for k := range partition {
		keys = append(keys, k)
	}
	return keys
}

// relationPartitionsOf finds every partition key holding the given row key.
// This is the reverse lookup the real store answers with a filtered scan.
func relationPartitionsOf(table map[string]map[string]struct{}, rowKey string) []string {
	var partitions []string
	for pk, partition := range table {
		if _, ok := partition[rowKey]; ok {
			partitions = append(partitions, pk)
		}
	}
	return partitions
}
