package dataset

import "fmt"

// SchemaError reports a raw value that does not fit the documented column
// schema, such as an unmapped vegetation code or an unknown state. These are
// never silently coerced; loading and cleaning fail fast instead.
type SchemaError struct {
	Column string
	Value  string
	Row    int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error at row %d: column %q has unmapped value %q", e.Row, e.Column, e.Value)
}
