package subtitles

import (
	"strings"
	"testing"

	"clipper/internal/services/detector"
	"clipper/internal/services/transcriber"
)

func TestBuildCuesSplitsLongSegmentsOnWords(t *testing.T) {
	words := []transcriber.Word{
		{Word: "the", Start: 0.0, End: 0.2},
		{Word: "quick", Start: 0.2, End: 0.5},
		{Word: "brown", Start: 0.5, End: 0.8},
		{Word: "fox", Start: 0.8, End: 1.0},
		{Word: "jumps", Start: 1.0, End: 1.3},
		{Word: "over", Start: 1.3, End: 1.5},
		{Word: "the", Start: 1.5, End: 1.6},
		{Word: "extraordinarily", Start: 1.6, End: 2.4},
		{Word: "lazy", Start: 2.4, End: 2.7},
		{Word: "dog", Start: 2.7, End: 3.0},
	}
	segments := []transcriber.Segment{{
		Start: 0, End: 3,
		Text:  "the quick brown fox jumps over the extraordinarily lazy dog",
		Words: words,
	}}

	cues := BuildCues(segments)
	if len(cues) < 2 {
		t.Fatalf("long segment produced %d cues, want a split", len(cues))
	}
	for i, cue := range cues {
		if len(cue.Text) > maxCueChars {
			t.Fatalf("cue %d exceeds limit: %q", i, cue.Text)
		}
		if cue.End <= cue.Start {
			t.Fatalf("cue %d has inverted timing: %+v", i, cue)
		}
		if i > 0 && cue.Start < cues[i-1].End {
			t.Fatalf("cue %d overlaps previous: %+v after %+v", i, cue, cues[i-1])
		}
	}
	joined := strings.Join([]string{cues[0].Text, cues[1].Text}, " ")
	if !strings.HasPrefix(joined, "the quick brown fox") {
		t.Fatalf("word order lost: %q", joined)
	}
}

func TestBuildCuesKeepsUntimedSegmentWhole(t *testing.T) {
	segments := []transcriber.Segment{{Start: 1.5, End: 3.0, Text: "hello there"}}
	cues := BuildCues(segments)
	if len(cues) != 1 {
		t.Fatalf("got %d cues, want 1", len(cues))
	}
	if cues[0].Start != 1.5 || cues[0].End != 3.0 || cues[0].Text != "hello there" {
		t.Fatalf("cue = %+v", cues[0])
	}
}

func TestBuildCuesSkipsEmptySegments(t *testing.T) {
	segments := []transcriber.Segment{
		{Start: 0, End: 1, Text: "  "},
		{Start: 1, End: 2, Text: "words"},
	}
	cues := BuildCues(segments)
	if len(cues) != 1 || cues[0].Text != "words" {
		t.Fatalf("cues = %+v", cues)
	}
}

func TestAlignCuesSnapsNearbyBoundaries(t *testing.T) {
	cues := []Cue{
		{Start: 1.2, End: 2.9, Text: "first"},
		{Start: 10.0, End: 11.0, Text: "far away"},
	}
	speech := []detector.SpeechSegment{{Start: 1.0, End: 3.0}}

	aligned := AlignCues(cues, speech)
	if aligned[0].Start != 1.0 || aligned[0].End != 3.0 {
		t.Fatalf("nearby cue not snapped: %+v", aligned[0])
	}
	if aligned[1].Start != 10.0 || aligned[1].End != 11.0 {
		t.Fatalf("distant cue moved: %+v", aligned[1])
	}
	// Input must not be mutated.
	if cues[0].Start != 1.2 {
		t.Fatal("AlignCues mutated its input")
	}
}

func TestAlignCuesWithoutSpeechIsIdentity(t *testing.T) {
	cues := []Cue{{Start: 1, End: 2, Text: "x"}}
	aligned := AlignCues(cues, nil)
	if len(aligned) != 1 || aligned[0] != cues[0] {
		t.Fatalf("aligned = %+v", aligned)
	}
}

func TestFormatASSTimestamp(t *testing.T) {
	cases := map[float64]string{
		0:       "0:00:00.00",
		1.5:     "0:00:01.50",
		65.25:   "0:01:05.25",
		3723.99: "1:02:03.99",
	}
	for input, want := range cases {
		if got := formatASSTimestamp(input); got != want {
			t.Errorf("formatASSTimestamp(%v) = %q, want %q", input, got, want)
		}
	}
}
