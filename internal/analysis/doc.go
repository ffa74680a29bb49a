// Package analysis mines finished transcript files for recurring topics,
// audience questions, and keyword frequency, and turns those signals into
// content suggestions.
package analysis
