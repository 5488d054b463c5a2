package dedupe

// Option configures a MemoryLedger.
type Option func(*MemoryLedger)

// WithMaxSize caps the number of keys. Once full, new keys are refused
// with ErrLedgerFull. maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(l *MemoryLedger) {
		l.maxSize = maxSize
	}
}
