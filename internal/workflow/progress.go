package workflow

import "clipper/internal/queue"

// stageBaselines maps each status to the job-level progress percentage
// reported the moment the stage starts. The values reflect the rough share
// of wall-clock time each stage consumes.
var stageBaselines = map[queue.Status]float64{
	queue.StatusQueued:                0,
	queue.StatusAnalyzingAudio:        5,
	queue.StatusFetchingCandidates:    15,
	queue.StatusDownloadingCandidates: 30,
	queue.StatusSelectingCandidates:   55,
	queue.StatusAssembling:            65,
	queue.StatusGeneratingSubtitles:   80,
	queue.StatusFinalComposition:      90,
	queue.StatusTrimming:              96,
	queue.StatusCompleted:             100,
}

// StageBaseline returns the progress percentage a job reports when the given
// stage begins.
func StageBaseline(stage queue.Status) float64 {
	return stageBaselines[stage]
}

var stageLabels = map[queue.Status]string{
	queue.StatusQueued:                "Queued",
	queue.StatusAnalyzingAudio:        "Analyzing narration audio",
	queue.StatusFetchingCandidates:    "Searching for candidate clips",
	queue.StatusDownloadingCandidates: "Downloading and validating clips",
	queue.StatusSelectingCandidates:   "Selecting clips",
	queue.StatusAssembling:            "Assembling video",
	queue.StatusGeneratingSubtitles:   "Generating subtitles",
	queue.StatusFinalComposition:      "Compositing final video",
	queue.StatusTrimming:              "Trimming to target duration",
	queue.StatusCompleted:             "Completed",
	queue.StatusFailed:                "Failed",
	queue.StatusCancelled:             "Cancelled",
}

// StageLabel returns the human-readable progress label for a status.
func StageLabel(status queue.Status) string {
	if label, ok := stageLabels[status]; ok {
		return label
	}
	return string(status)
}
