// Package grants stores group permissions on folders and files.
//
// Two write policies share the same underlying insert and delete:
//
//   - Ensure* operations are idempotent. An existing grant (or a missing one,
//     for revocation) is a silent no-op. Inheritance propagation uses them so
//     a re-run never fails part way through a subtree.
//   - *Strict operations back the direct toggle endpoints and report
//     duplicates and missing grants as errors.
//
// ListGrantsForGroups feeds the visibility filter of the authorization gate.
package grants
