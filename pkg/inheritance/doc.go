// Package inheritance propagates a group's permission down a folder subtree.
//
// Apply grants the group every folder below (and including) a root folder and
// every file stored in those folders. Remove revokes the same set. Both run in
// a single transaction on top of the idempotent grant operations, so a retried
// request converges on the same state and never fails on grants that already
// exist or are already gone. Grants held by other groups, and grants outside
// the subtree, are never touched.
//
// Propagation is a one-shot operation: folders and files created later under
// the root do not pick up the grant on their own.
package inheritance
