// Package storage writes finalized audio artifacts to the output directory.
// Every artifact is staged in a temporary file next to its destination and
// renamed into place, so readers never observe a partially written file.
package storage
