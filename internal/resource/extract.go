// Package resource turns an API description into the flat list of resource
// paths a service exposes.
package resource

import "strings"

// Node is one resource of an API description tree.
type Node struct {
	RelativeURI string
	Methods     []string
	Resources   []*Node
}

// Extract flattens the trees rooted at nodes into resource paths. Each node
// contributes its children's paths prefixed with its own relative URI, then
// its own relative URI if it declares at least one method. Source order is
// kept and duplicates are not removed.
func Extract(nodes []*Node) []string {
	paths := make([]string, 0)
	for _, n := range nodes {
		paths = append(paths, extractNode(n)...)
	}
	return paths
}

func extractNode(n *Node) []string {
	var paths []string
	for _, child := range n.Resources {
		for _, p := range extractNode(child) {
			paths = append(paths, n.RelativeURI+p)
		}
	}
	if len(n.Methods) > 0 {
		paths = append(paths, n.RelativeURI)
	}
	return paths
}

// Normalize prefixes every path with "/" unless it already has one, so an
// empty entry becomes the root path.
func Normalize(paths []string) []string {
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		normalized = append(normalized, p)
	}
	return normalized
}
