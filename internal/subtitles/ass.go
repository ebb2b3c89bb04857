package subtitles

import (
	"fmt"
	"math"
	"strings"

	"clipper/internal/fileutil"
)

const assHeader = `[Script Info]
Title: clipper subtitles
ScriptType: v4.00+
PlayResX: 1080
PlayResY: 1920
WrapStyle: 0

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,72,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,4,2,2,60,60,320,1

[Events]
Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
`

// WriteASS renders cues to an Advanced SubStation file at path.
func WriteASS(path string, cues []Cue) error {
	var builder strings.Builder
	builder.WriteString(assHeader)
	for _, cue := range cues {
		text := strings.ReplaceAll(cue.Text, "\n", `\N`)
		fmt.Fprintf(&builder, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTimestamp(cue.Start), formatASSTimestamp(cue.End), text)
	}
	return fileutil.WriteAtomic(path, []byte(builder.String()), 0o644)
}

// formatASSTimestamp renders seconds as H:MM:SS.cc, the ASS centisecond
// form.
func formatASSTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(math.Round(seconds * 100))
	centis := total % 100
	secs := (total / 100) % 60
	minutes := (total / 6000) % 60
	hours := total / 360000
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centis)
}
