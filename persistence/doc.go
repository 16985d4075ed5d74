// Package persistence reads and writes volume snapshots.
//
// A snapshot is one little-endian byte stream:
//
//	header     magic "VXF1", version u16, compression u8, codec name length u8,
//	           meta length u32, reserved u32
//	codec      codec name
//	meta       Meta encoded with the named codec
//	entries    BucketCount+ExcessSize entries of 14 bytes: x, y, z i16, offset i32, ptr i32
//	free lists count u32 + i32 ids, blocks first, then excess slots
//	blocks     count u32, then per block: ptr i32 + compressed chunk
//	trailer    CRC32C u32 of everything before it
//
// Decode checks the checksum before parsing anything past the header, so a
// snapshot either decodes completely or not at all.
package persistence
