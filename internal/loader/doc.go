// Package loader reads patch documents written in CUE and turns them into the
// block graph and lowered bundle the compiler consumes.
//
// A document is unified with an embedded schema before anything else happens,
// so shape errors (unknown fields, wrong kinds, out-of-range numbers) come
// back from CUE with file positions. Reference errors found while lowering
// (an expression id past the end of the table, an unknown instance key) carry
// the position of the list element that made them.
package loader
