package ancestry

// OrphanStrategy governs what happens to a deleted node's descendants.
type OrphanStrategy string

const (
	// Rootify promotes the deleted node's direct children to roots,
	// preserving the relative structure of the subtree below them.
	Rootify OrphanStrategy = "rootify"
	// Restrict vetoes deletion of any node that still has children.
	Restrict OrphanStrategy = "restrict"
	// Destroy removes the whole subtree along with the node.
	Destroy OrphanStrategy = "destroy"
)

// Schema is the immutable descriptor passed into every core operation. It
// replaces any notion of ambient per-type configuration: two services over
// the same store may carry different schemas, and nothing here mutates.
type Schema struct {
	Strategy   OrphanStrategy
	CacheDepth bool
}

// NewSchema validates the strategy name and returns the descriptor.
func NewSchema(strategy OrphanStrategy, cacheDepth bool) (Schema, error) {
	switch strategy {
	case Rootify, Restrict, Destroy:
	case "":
		strategy = Rootify
	default:
		return Schema{}, &ConfigurationError{Reason: "unknown orphan strategy " + string(strategy)}
	}
	return Schema{Strategy: strategy, CacheDepth: cacheDepth}, nil
}
