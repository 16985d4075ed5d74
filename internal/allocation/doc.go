// Package allocation decides, for every depth frame, which blocks must exist
// along each viewing ray and commits them into the hash index.
//
// # Plan
//
// Plan runs in parallel over depth rows. Each valid pixel marches the
// segment [d-band, d+band] along its ray in half-block strides. Blocks
// already in the index are flagged visible. Missing blocks claim their
// primary bucket with a single compare-and-swap on a packed word
//
//	bits  0-15  x
//	bits 16-31  y
//	bits 32-47  z
//	bits 48-49  state (needs primary / needs excess)
//
// Losing the CAS to the same coordinate is a no-op. Losing it to a different
// coordinate appends the request to a bounded overflow buffer; requests that
// do not fit are dropped for this frame and retried by later frames.
//
// # Commit
//
// Commit first realizes primary claims in parallel (distinct buckets, atomic
// block pops), then excess claims and the overflow buffer sequentially,
// which keeps chain surgery single-threaded. Capacity failures are counted,
// never returned. All claims are cleared before Commit returns.
package allocation
