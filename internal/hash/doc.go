// Package hash computes the CRC32-Castagnoli checksums that guard snapshot
// files and S3 uploads.
//
// One-shot:
//
//	sum := hash.CRC32C(data)
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(header)
//	h.Write(body)
//	sum := h.Sum32()
//
// The standard library picks the SSE4.2 or ARM CRC instructions when the
// CPU has them.
package hash
