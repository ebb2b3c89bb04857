// Package subtitles builds the burned-in subtitle track for a short from
// the word-level transcript, optionally aligning cue boundaries to detected
// speech regions.
package subtitles
