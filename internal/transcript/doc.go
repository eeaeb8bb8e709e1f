// Package transcript turns the transcript documents produced by the
// recording provider into a single speaker-attributed text.
//
// The provider's schema differs by recording mode, so Normalize accepts any
// decoded JSON value and tries the known shapes in order:
//
//   - a list of per-participant segments, each with a participant and a list
//     of words; consecutive segments of one speaker are merged into a line
//     prefixed with "Speaker: "
//   - a flat list of segments, or an object exposing "segments" or "words",
//     or a plain "text" / "transcript" string
//
// Anything else yields no transcript. Normalize never panics on malformed
// input.
package transcript
