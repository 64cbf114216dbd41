package matching

// Match score constants for name matching.
// Higher scores indicate more specific/precise matches.
const (
	// ScoreNameExact is the score for an exact name match.
	ScoreNameExact = 20

	// ScoreNamePattern is the score for a regexp name match.
	ScoreNamePattern = 16

	// ScoreNameGlob is the score for a glob name match.
	ScoreNameGlob = 15
)

// Match score constants for the remaining record fields.
const (
	// ScoreType is the score for a metric type match.
	ScoreType = 10

	// ScoreTag is the score for each required tag found on the record.
	ScoreTag = 5

	// ScoreValue is the score for a value constraint match.
	ScoreValue = 8

	// ScoreSampleRate is the score for a sample rate match.
	ScoreSampleRate = 3
)
