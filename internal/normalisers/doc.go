// Package normalisers extracts plain text from uploaded files. Each
// extractor handles a set of file extensions and is registered with a
// Registry at startup.
package normalisers
