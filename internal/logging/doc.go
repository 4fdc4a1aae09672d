// Package logging configures structured JSON logging to a size-rotated
// file and provides a viewer for reading those logs back.
package logging
