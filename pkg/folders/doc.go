// Package folders implements the folder hierarchy: storage of the
// self-referencing folder table, subtree traversal used by inheritance
// propagation, and assembly of the nested tree returned to clients.
//
// # Traversal
//
// Descendants walks the hierarchy breadth-first from a start folder, one
// child query per visited folder, and always includes the start folder
// itself. DescendantFiles then resolves every file stored in that set.
//
// # Tree assembly
//
// BuildTree turns a flat, name-ordered folder list into nested nodes. A
// folder whose parent is absent from the list becomes a root, which is how a
// USER's visibility-filtered view stays navigable.
package folders
