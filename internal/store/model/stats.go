package model

// SubmissionStats holds the number of submissions per status.
type SubmissionStats struct {
	Total    int
	ByStatus map[SubmissionStatus]int
}

func NewSubmissionStats(counts map[SubmissionStatus]int) SubmissionStats {
	stats := SubmissionStats{ByStatus: make(map[SubmissionStatus]int, len(SubmissionStatuses))}
	for _, status := range SubmissionStatuses {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats
}
