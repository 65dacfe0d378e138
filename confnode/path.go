package confnode

import (
	"fmt"
	"strings"

	"github.com/dvhost/dvhost/types"
)

// resolvePath resolves path against start. Absolute paths (leading "/")
// resolve from start's root regardless of start; relative paths resolve
// against start directly and may not escape upward — there is no ".."
// segment, so resolution is monotonic by construction. Write-intent
// traversal creates missing nodes; read traversal of a missing node fails
// with ErrNotFound.
func resolvePath(start types.Node, path string, writeIntent bool) (types.Node, error) {
	cur := start
	if strings.HasPrefix(path, "/") {
		for cur.Parent() != nil {
			cur = cur.Parent()
		}
	}
	segments := splitPath(path)
	for _, seg := range segments {
		if !types.ValidKey(seg) {
			return nil, fmt.Errorf("%w: invalid path segment %q", types.ErrInvalidName, seg)
		}
		if writeIntent {
			cur = cur.AddChild(seg)
			continue
		}
		next, err := cur.GetChild(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s in path %q", types.ErrNotFound, seg, path)
		}
		cur = next
	}
	return cur, nil
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
