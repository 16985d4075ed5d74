// Package raycast decides which blocks a camera sees and marches rays
// through the volume to find the zero crossing of the distance field.
//
// # Visibility
//
// Before a frame is planned, DemoteVisible moves every Visible and
// StreamedOutVisible entry to VisiblePreviousFrame. Planning flags the
// entries its rays touch. RetestPrevious then re-tests the demoted entries
// against the new frustum, evicted ones against an enlarged frustum, and
// returns the resident visible set. Visibility never frees anything.
//
// # Raycast
//
// Visible blocks are rasterised into a coarse min/max depth image that
// bounds each ray. Rays march in voxel units, skip unallocated space one
// truncation band at a time, and stop at the first positive to non-positive
// transition of the distance field.
package raycast
