package catalog

import (
	"context"
	"sort"

	"github.com/safar/go-shop-api/internal/database"
	"github.com/safar/go-shop-api/internal/models"
)

// Index is an in-memory category forest built from one listing. Nodes
// live in a flat slice and refer to their children by position.
type Index struct {
	nodes []indexNode
	pos   map[int64]int
	roots []int
}

type indexNode struct {
	category models.Category
	children []int
}

func NewIndex(categories []models.Category) *Index {
	ix := &Index{
		nodes: make([]indexNode, len(categories)),
		pos:   make(map[int64]int, len(categories)),
	}

	for i, c := range categories {
		ix.nodes[i] = indexNode{category: c}
		ix.pos[c.ID] = i
	}

	for i, c := range categories {
		if c.ParentID == nil {
			ix.roots = append(ix.roots, i)
			continue
		}
		parent, ok := ix.pos[*c.ParentID]
		if !ok {
			ix.roots = append(ix.roots, i)
			continue
		}
		ix.nodes[parent].children = append(ix.nodes[parent].children, i)
	}

	ix.sortPositions(ix.roots)
	for i := range ix.nodes {
		ix.sortPositions(ix.nodes[i].children)
	}

	return ix
}

func (ix *Index) sortPositions(positions []int) {
	sort.SliceStable(positions, func(a, b int) bool {
		ca, cb := ix.nodes[positions[a]].category, ix.nodes[positions[b]].category
		if ca.Name != cb.Name {
			return ca.Name < cb.Name
		}
		return ca.ID < cb.ID
	})
}

func (ix *Index) Len() int {
	return len(ix.nodes)
}

func (ix *Index) GetCategory(_ context.Context, id int64) (*models.Category, error) {
	i, ok := ix.pos[id]
	if !ok {
		return nil, database.ErrCategoryNotFound
	}
	c := ix.nodes[i].category
	return &c, nil
}

func (ix *Index) ListChildren(_ context.Context, parentID int64) ([]models.Category, error) {
	i, ok := ix.pos[parentID]
	if !ok {
		return nil, nil
	}

	children := make([]models.Category, 0, len(ix.nodes[i].children))
	for _, child := range ix.nodes[i].children {
		children = append(children, ix.nodes[child].category)
	}
	return children, nil
}

// Roots returns the categories with no parent in the index, by name.
func (ix *Index) Roots() []models.Category {
	roots := make([]models.Category, 0, len(ix.roots))
	for _, i := range ix.roots {
		roots = append(roots, ix.nodes[i].category)
	}
	return roots
}

// Forest renders every category in listing order, each with its subtree.
func (ix *Index) Forest(ctx context.Context) ([]*Node, error) {
	out := make([]*Node, 0, len(ix.nodes))
	for i := range ix.nodes {
		c := ix.nodes[i].category
		node, err := Tree(ctx, ix, &c)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}
