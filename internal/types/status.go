package types

// Status is a type for the lifecycle status of a resource in the store.
// published resources are live, archived ones are soft-retired (the "active
// flag" of plans and addons), deleted ones are soft-deleted and excluded
// from every default query.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}
