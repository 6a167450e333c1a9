package domain

// Usage reports local storage consumption against the configured budget.
type Usage struct {
	BytesUsed   int64
	PercentUsed float64
}

// Store is the local key-value persistence layer. Implementations contain
// JSON parse failures (the caller's pre-set default survives a malformed
// value) and handle quota exhaustion with a bounded cleanup-and-retry pass;
// Set/SetJSON report failure instead of raising, and callers must not assume
// persistence succeeded on false.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) bool
	Remove(key string)

	// GetJSON unmarshals the stored value into dest. Returns false (leaving
	// dest untouched) when the key is absent or the value is malformed.
	GetJSON(key string, dest any) bool
	SetJSON(key string, value any) bool

	Usage() Usage
	Keys() []string
	Close() error
}

// Namespace is the isolated bucket of local keys for guest vs. authenticated
// identity. Exactly one namespace is active at a time.
type Namespace int

const (
	NamespaceUser Namespace = iota
	NamespaceGuest
)

// Prefix returns the backup-key prefix for the namespace.
func (n Namespace) Prefix() string {
	if n == NamespaceGuest {
		return "guest_"
	}
	return "user_"
}

func (n Namespace) String() string {
	if n == NamespaceGuest {
		return "guest"
	}
	return "user"
}
