package artifact

import "fmt"

// PreconditionError reports a missing prerequisite for an artifact
// operation. It is fatal and never retried.
type PreconditionError struct {
	Op   string
	Path string
	Err  error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Path, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// VariantMissingError reports that a requested variant has no source
// bundle on disk.
type VariantMissingError struct {
	Variant Variant
	Path    string
}

func (e *VariantMissingError) Error() string {
	return fmt.Sprintf("variant %q not found at %s", e.Variant, e.Path)
}
