package operations

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"
)

// DebugRecord is the dumpable shape of an operation or queue: a
// description, a flat property bag, the names of its attached conditions,
// and the (recursive) DebugRecords of its dependencies and any
// sub-operations (e.g. a group's children).
type DebugRecord struct {
	Description  string
	Properties   map[string]string
	Conditions   []string
	Dependencies []DebugRecord
	SubOperations []DebugRecord
}

// Dump renders rec as an indented tree to w, capping recursion depth at
// maxDepth to guard against cycles (an operation could, in principle, be
// made its own indirect dependency by a misbehaving caller).
func Dump(w io.Writer, rec DebugRecord, maxDepth int) {
	dump(w, rec, 0, maxDepth)
}

func dump(w io.Writer, rec DebugRecord, depth, maxDepth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%s- %s\n", indent, rec.Description)

	if depth >= maxDepth {
		if len(rec.Dependencies) > 0 || len(rec.SubOperations) > 0 {
			fmt.Fprintf(w, "%s  ... (depth cap reached)\n", indent)
		}
		return
	}

	keys := make([]string, 0, len(rec.Properties))
	for k := range rec.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s    %s=%s\n", indent, k, rec.Properties[k])
	}
	for _, c := range rec.Conditions {
		fmt.Fprintf(w, "%s    condition: %s\n", indent, c)
	}
	for _, dep := range rec.Dependencies {
		fmt.Fprintf(w, "%s  dependency:\n", indent)
		dump(w, dep, depth+1, maxDepth)
	}
	for _, sub := range rec.SubOperations {
		fmt.Fprintf(w, "%s  sub-operation:\n", indent)
		dump(w, sub, depth+1, maxDepth)
	}
}
