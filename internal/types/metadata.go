package types

// Metadata is a map of key-value pairs attached to a record for free-form
// annotation; it is never interpreted by the engine
type Metadata map[string]string
