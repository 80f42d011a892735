// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package graph

import "fmt"

// CompileError reports a Compile failure: a pass reading a resource
// with no producer, or a resource produced only by a pass registered
// after its reader (a forward reference under the
// registration-order-is-topological-order policy).
type CompileError struct {
	Pass     string
	Resource string
	Reason   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("graph: compile: pass %q, resource %q: %s", e.Pass, e.Resource, e.Reason)
}
