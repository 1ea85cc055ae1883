package domain

// Frequency selects the time window for a news search.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "year"
)

// Frequencies lists the valid options in display order.
func Frequencies() []Frequency {
	return []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly}
}

// TimeRange maps the frequency onto the search provider's range code.
func (f Frequency) TimeRange() string {
	switch f {
	case FrequencyWeekly:
		return "w"
	case FrequencyMonthly:
		return "m"
	case FrequencyYearly:
		return "y"
	default:
		return "d"
	}
}

// Days returns the window size in days.
func (f Frequency) Days() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 30
	case FrequencyYearly:
		return 366
	default:
		return 1
	}
}

// SummaryFilename is the on-disk name the summary for this window is
// stored under, e.g. "daily_summary.md".
func (f Frequency) SummaryFilename() string {
	return string(f) + "_summary.md"
}
