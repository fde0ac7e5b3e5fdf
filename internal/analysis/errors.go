package analysis

import "fmt"

// UnsupportedError reports a schema construct with no defined mapping.
// Terminal outside relaxed mode.
type UnsupportedError struct {
	Path   string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported schema construct at %s: %s", e.Path, e.Reason)
}

// CollisionError reports two structurally different schema nodes whose
// candidate names normalize to the same identifier. The builder never merges
// incompatible shapes under one name.
type CollisionError struct {
	Path      string
	OtherPath string
	Name      string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("naming collision at %s: %q already generated from %s with a different shape", e.Path, e.Name, e.OtherPath)
}

// UnionError reports a oneOf/anyOf whose variants cannot be represented by a
// single discriminated type.
type UnionError struct {
	Path   string
	Reason string
}

func (e *UnionError) Error() string {
	return fmt.Sprintf("irreconcilable union at %s: %s", e.Path, e.Reason)
}

// DepthError reports recursion beyond the defensive depth cap.
type DepthError struct {
	Path  string
	Limit int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("schema nesting at %s exceeds depth limit %d", e.Path, e.Limit)
}
