package ports

// Attribute names usable in filters. The set is closed on purpose: the
// application only ever scans on key equality, title equality, and the
// two-field identity match, so a full expression-tree evaluator is not
// needed.
const (
	FieldPartitionKey     = "PK"
	FieldRowKey           = "SK"
	FieldTitle            = "Title"
	FieldName             = "Name"
	FieldUniqueIdentifier = "UniqueIdentifier"
)

// Filter is one equality condition on a stored attribute.
type Filter struct {
	Field string
	Value string
}

// Criteria is a conjunction of equality filters applied to a scan.
type Criteria struct {
	Filters []Filter
}

// Where starts a criteria with a single equality filter.
func Where(field, value string) Criteria {
	return Criteria{Filters: []Filter{{Field: field, Value: value}}}
}

// And appends another equality filter.
func (c Criteria) And(field, value string) Criteria {
	c.Filters = append(c.Filters, Filter{Field: field, Value: value})
	return c
}

// IsEmpty reports whether the criteria has no filters (full scan).
func (c Criteria) IsEmpty() bool {
	return len(c.Filters) == 0
}

// Matches evaluates the criteria against an attribute lookup function. Used
// by store implementations that filter client-side.
func (c Criteria) Matches(attr func(field string) string) bool {
	for _, f := range c.Filters {
		if attr(f.Field) != f.Value {
			return false
		}
	}
	return true
}
