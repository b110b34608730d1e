package driven

// ConfigStore provides access to application configuration.
// Keys use dot notation for nested tables, e.g. "embedding.provider".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString returns "" if the key is missing or not a string.
	GetString(key string) string

	// GetInt returns 0 if the key is missing or not an integer.
	GetInt(key string) int

	// GetFloat accepts integer or float values and returns 0 otherwise.
	GetFloat(key string) float64

	// Set stores a configuration value and persists it immediately.
	Set(key string, value any) error

	// Path returns where the configuration is persisted, or "" if it is not.
	Path() string
}
