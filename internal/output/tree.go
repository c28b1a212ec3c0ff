// Package output renders arrangements for the terminal.
package output

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"forestry/internal/ancestry"
)

// TreeRenderer renders an arrangement as a styled terminal tree.
type TreeRenderer struct {
	rootStyle lipgloss.Style
	itemStyle lipgloss.Style
	enumStyle lipgloss.Style
}

func NewTreeRenderer() *TreeRenderer {
	return &TreeRenderer{
		rootStyle: lipgloss.NewStyle().Bold(true),
		itemStyle: lipgloss.NewStyle(),
		enumStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Render returns the whole forest, one rendered tree per root.
func (r *TreeRenderer) Render(a *ancestry.Arrangement) string {
	out := ""
	for _, root := range a.Roots() {
		t := tree.Root(r.rootStyle.Render(label(root))).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(r.enumStyle).
			ItemStyle(r.itemStyle)
		for _, child := range root.Children {
			t.Child(r.subtree(child))
		}
		out += t.String() + "\n"
	}
	return out
}

func (r *TreeRenderer) subtree(n *ancestry.TreeNode) *tree.Tree {
	t := tree.Root(label(n))
	for _, child := range n.Children {
		t.Child(r.subtree(child))
	}
	return t
}

func label(n *ancestry.TreeNode) string {
	if n.Record.Name == "" {
		return fmt.Sprintf("#%d", n.Record.ID)
	}
	return fmt.Sprintf("#%d %s", n.Record.ID, n.Record.Name)
}
