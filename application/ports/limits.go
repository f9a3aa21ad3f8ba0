package ports

// Limits caps how much a single caller or container can accumulate. A zero
// or negative value disables the corresponding cap.
type Limits struct {
	MaxNotesPerList     int
	MaxTaskListsPerUser int
	MaxSharesPerEntity  int
}

// LimitsProvider yields the limits in effect right now. Providers backed by
// a config watcher may hand out different values between calls.
type LimitsProvider func() Limits

// FixedLimits returns a provider that always yields the same limits.
func FixedLimits(limits Limits) LimitsProvider {
	return func() Limits { return limits }
}
