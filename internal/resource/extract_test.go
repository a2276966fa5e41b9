package resource

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tree := []*Node{
		{
			RelativeURI: "/api",
			Resources: []*Node{
				{
					RelativeURI: "/stockCards",
					Methods:     []string{"get"},
					Resources: []*Node{
						{RelativeURI: "/{id}", Methods: []string{"get", "put"}},
						{RelativeURI: "/{id}/print"},
					},
				},
				{RelativeURI: "/stockEvents", Methods: []string{"post"}},
			},
		},
		{RelativeURI: "/health", Methods: []string{"get"}},
	}

	assert.Equal(t, []string{
		"/api/stockCards/{id}",
		"/api/stockCards",
		"/api/stockEvents",
		"/health",
	}, Extract(tree))
}

func TestExtractNoMethods(t *testing.T) {
	tree := []*Node{{RelativeURI: "/a", Resources: []*Node{{RelativeURI: "/b"}}}}
	assert.Empty(t, Extract(tree))
	assert.NotNil(t, Extract(nil))
}

func TestExtractKeepsDuplicates(t *testing.T) {
	tree := []*Node{
		{RelativeURI: "/a", Methods: []string{"get"}},
		{RelativeURI: "/a", Methods: []string{"post"}},
	}
	assert.Equal(t, []string{"/a", "/a"}, Extract(tree))
}

// Extracted paths must equal the root-to-node concatenations of every node
// that declares a method.
func TestExtractMatchesVerbBearingPaths(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		tree := randomTree(rng, 4)
		want := verbPaths(tree, "")
		got := Extract(tree)
		sort.Strings(want)
		sort.Strings(got)
		assert.Equal(t, want, got, "tree %d", i)
	}
}

func randomTree(rng *rand.Rand, depth int) []*Node {
	if depth == 0 {
		return nil
	}
	nodes := make([]*Node, rng.Intn(4))
	for i := range nodes {
		n := &Node{RelativeURI: fmt.Sprintf("/n%d", rng.Intn(5))}
		if rng.Intn(2) == 0 {
			n.Methods = []string{"get"}
		}
		n.Resources = randomTree(rng, depth-1)
		nodes[i] = n
	}
	return nodes
}

func verbPaths(nodes []*Node, prefix string) []string {
	paths := make([]string, 0)
	for _, n := range nodes {
		full := prefix + n.RelativeURI
		if len(n.Methods) > 0 {
			paths = append(paths, full)
		}
		paths = append(paths, verbPaths(n.Resources, full)...)
	}
	return paths
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{in: []string{"api/stockEvents"}, want: []string{"/api/stockEvents"}},
		{in: []string{"/api/stockEvents"}, want: []string{"/api/stockEvents"}},
		{in: []string{"a", "/b", "", "c/d"}, want: []string{"/a", "/b", "/", "/c/d"}},
		{in: []string{""}, want: []string{"/"}},
		{in: nil, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.in, ","), func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeNeverDoublesPrefix(t *testing.T) {
	once := Normalize([]string{"x", "/y", "//z"})
	assert.Equal(t, once, Normalize(once))
	assert.Equal(t, "//z", once[2])
}
