package subtitles

import (
	"strings"

	"clipper/internal/services/detector"
	"clipper/internal/services/transcriber"
)

// maxCueChars bounds cue text length; longer segments are split on word
// boundaries with timing interpolated from the word timestamps.
const maxCueChars = 42

// Cue is a single subtitle with timing in seconds.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// BuildCues turns transcript segments into display cues. Segments with
// word-level timing are split into short cues; segments without it become a
// single cue.
func BuildCues(segments []transcriber.Segment) []Cue {
	var cues []Cue
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		if len(segment.Words) == 0 {
			cues = append(cues, Cue{Start: segment.Start, End: segment.End, Text: text})
			continue
		}
		cues = append(cues, splitSegment(segment)...)
	}
	return cues
}

func splitSegment(segment transcriber.Segment) []Cue {
	var cues []Cue
	var current Cue
	var words []string

	flush := func() {
		if len(words) == 0 {
			return
		}
		current.Text = strings.Join(words, " ")
		cues = append(cues, current)
		current = Cue{}
		words = nil
	}

	for _, word := range segment.Words {
		token := strings.TrimSpace(word.Word)
		if token == "" {
			continue
		}
		candidate := len(token)
		for _, w := range words {
			candidate += len(w) + 1
		}
		if len(words) > 0 && candidate > maxCueChars {
			flush()
		}
		if len(words) == 0 {
			current.Start = word.Start
		}
		current.End = word.End
		words = append(words, token)
	}
	flush()
	return cues
}

// snapThreshold is how far a cue boundary may move to meet a detected
// speech boundary.
const snapThreshold = 0.35

// AlignCues snaps cue boundaries to detected speech segments. Cue starts
// snap to speech starts and cue ends to speech ends, but only when the
// detected boundary is close; distant cues are left alone.
func AlignCues(cues []Cue, speech []detector.SpeechSegment) []Cue {
	if len(speech) == 0 {
		return cues
	}
	aligned := make([]Cue, len(cues))
	copy(aligned, cues)
	for i := range aligned {
		cue := &aligned[i]
		for _, region := range speech {
			if delta := region.Start - cue.Start; delta > -snapThreshold && delta < snapThreshold {
				cue.Start = region.Start
			}
			if delta := region.End - cue.End; delta > -snapThreshold && delta < snapThreshold {
				cue.End = region.End
			}
		}
		if cue.End <= cue.Start {
			cue.End = cue.Start + 0.1
		}
	}
	return aligned
}
