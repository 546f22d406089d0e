// Package diffengine computes line-level change statistics between two texts.
//
// Invariants:
// - LineDiffStats is pure: identical inputs always yield identical outputs.
// - Insertions and deletions are derived from the longest common subsequence of lines.
// - The LCS is quadratic in line count and meant for single-file-sized inputs.
//
// Usage:
//
//	stats := diffengine.LineDiffStats("a\nb\nc", "a\nc")
//	_ = stats.Deletions // 1
package diffengine
