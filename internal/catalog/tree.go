package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/safar/go-shop-api/internal/models"
)

// ErrCycle reports a parent chain that loops back on itself.
var ErrCycle = errors.New("category hierarchy contains a cycle")

type CategoryReader interface {
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	ListChildren(ctx context.Context, parentID int64) ([]models.Category, error)
}

type Node struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	ParentID *int64  `json:"parent"`
	Children []*Node `json:"children"`
}

func newNode(c models.Category) *Node {
	return &Node{ID: c.ID, Name: c.Name, Slug: c.Slug, ParentID: c.ParentID, Children: []*Node{}}
}

func sortByName(cats []models.Category) {
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Name != cats[j].Name {
			return cats[i].Name < cats[j].Name
		}
		return cats[i].ID < cats[j].ID
	})
}

// Ancestors returns every ancestor of c, root first, ending with its parent.
func Ancestors(ctx context.Context, r CategoryReader, c *models.Category) ([]models.Category, error) {
	var chain []models.Category
	seen := map[int64]bool{c.ID: true}

	for parentID := c.ParentID; parentID != nil; {
		if seen[*parentID] {
			return nil, ErrCycle
		}
		seen[*parentID] = true

		parent, err := r.GetCategory(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("get ancestor %d: %w", *parentID, err)
		}
		chain = append(chain, *parent)
		parentID = parent.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Descendants returns every category below id in pre-order, siblings by name.
func Descendants(ctx context.Context, r CategoryReader, id int64) ([]models.Category, error) {
	var out []models.Category
	seen := map[int64]bool{id: true}
	stack := []int64{id}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current != id {
			c, err := r.GetCategory(ctx, current)
			if err != nil {
				return nil, fmt.Errorf("get descendant %d: %w", current, err)
			}
			out = append(out, *c)
		}

		children, err := r.ListChildren(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("list children of %d: %w", current, err)
		}
		sortByName(children)

		for i := len(children) - 1; i >= 0; i-- {
			if seen[children[i].ID] {
				return nil, ErrCycle
			}
			seen[children[i].ID] = true
			stack = append(stack, children[i].ID)
		}
	}

	return out, nil
}

// IsDescendant reports whether candidate lies in the subtree below id.
func IsDescendant(ctx context.Context, r CategoryReader, id, candidate int64) (bool, error) {
	below, err := Descendants(ctx, r, id)
	if err != nil {
		return false, err
	}
	for _, c := range below {
		if c.ID == candidate {
			return true, nil
		}
	}
	return false, nil
}

// Tree builds the nested subtree rooted at c breadth first.
func Tree(ctx context.Context, r CategoryReader, c *models.Category) (*Node, error) {
	root := newNode(*c)
	seen := map[int64]bool{c.ID: true}
	queue := []*Node{root}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		children, err := r.ListChildren(ctx, node.ID)
		if err != nil {
			return nil, fmt.Errorf("list children of %d: %w", node.ID, err)
		}
		sortByName(children)

		for _, child := range children {
			if seen[child.ID] {
				return nil, ErrCycle
			}
			seen[child.ID] = true

			n := newNode(child)
			node.Children = append(node.Children, n)
			queue = append(queue, n)
		}
	}

	return root, nil
}
