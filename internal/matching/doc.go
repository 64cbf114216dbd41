// Package matching provides the matching primitives behind metric verification.
//
// It implements scoring-based matching of decoded StatsD records against
// expectations, supporting:
//
//   - Name matching: exact names, doublestar globs ("api.*.latency"), and regexps
//   - Tag matching: multiset containment of "key:value" tags and bare labels
//   - Field breakdowns: per-field match/mismatch results used to report near misses
//
// More specific matches receive higher scores. When a verification times out,
// the records with the highest partial score are reported as near misses so a
// failing test shows what almost matched. Score constants are defined in scores.go.
package matching
