package folders

// BuildTree nests folders under their parents. Folders whose parent is nil
// or not in the input become roots. Input order is kept for roots and for
// the children of each node.
func BuildTree(folders []*Folder) []*Node {
	nodes := make(map[int64]*Node, len(folders))
	for _, f := range folders {
		nodes[f.ID] = &Node{Folder: *f, Children: []*Node{}}
	}

	roots := []*Node{}
	for _, f := range folders {
		node := nodes[f.ID]
		if f.ParentID != nil {
			if parent, ok := nodes[*f.ParentID]; ok && parent != node {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
