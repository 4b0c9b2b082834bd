// Package imaging loads and prepares source photos for annotation.
//
// Cache keeps decoded images keyed by path so repeated tool calls on the same
// file skip the disk. Prepare checks an upload the way the annotate flow
// expects it: a PNG or JPEG extension, contents that actually decode, and a
// size no larger than the detector's working resolution.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X growing
// rightward and Y growing downward.
//
// # Thread Safety
//
// Cache is safe for concurrent use. Prepare is stateless.
package imaging
