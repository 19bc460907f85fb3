// Package rawhcl turns a single Terraform configuration file's bytes into a
// RawPayload: a mapping from block-type string to its ordered list of block
// objects, with syntactic sanity filters applied. It returns a Go error
// when a file cannot be read or decoded; the caller records that error
// (internal/loader keeps a per-file parsing-errors map) so a directory-wide
// traversal can continue past one bad file.
package rawhcl

// RawPayload is one file's parsed HCL/JSON tree. A .tf file's keys are
// block-types ("resource", "module", "variable", "locals", ...) mapping to
// an ordered list of block objects. A .tfvars file has no blocks at all, so
// its keys are attribute names, each mapping to a single-element slice
// holding the attribute's value — the same list-wrapping HCL2 applies to
// every attribute.
type RawPayload map[string][]any

// Block is a parsed block object. It has exactly one top-level identifier
// key: the block's name for single-label blocks (e.g. "v" for
// variable "v" {...}), or the first of several nested labels for
// multi-labelled blocks such as resource/data (recursively nested one
// level per remaining label).
type Block map[string]any

// Clone returns a shallow copy of the payload's top-level map and slices,
// so callers can append/remove entries without mutating the original.
func (p RawPayload) Clone() RawPayload {
	out := make(RawPayload, len(p))
	for key, values := range p {
		cp := make([]any, len(values))
		copy(cp, values)
		out[key] = cp
	}
	return out
}
