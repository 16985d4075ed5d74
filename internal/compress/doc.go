// Package compress frames byte chunks with LZ4 or ZSTD block compression.
//
// Every chunk carries an 8-byte header:
//
//	[uncompressed size uint32][compressed size uint32][payload]
//
// A compressed size of 0 marks a raw payload. Chunks that do not shrink
// below 90% of their input are stored raw.
package compress
