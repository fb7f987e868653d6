package prompt

var suggested = []string{
	"What are the top 5 highest values?",
	"Which column has missing data?",
	"What trends can you observe?",
	"Is there any correlation between columns?",
	"What is the average of numeric columns?",
	"Summarize the dataset.",
	"Are there outliers?",
	"Which column has the most unique values?",
}

// Suggested returns the canned starter questions offered to users.
func Suggested() []string {
	out := make([]string, len(suggested))
	copy(out, suggested)
	return out
}

// Suggestion returns the 1-based n-th suggested question.
func Suggestion(n int) (string, bool) {
	if n < 1 || n > len(suggested) {
		return "", false
	}
	return suggested[n-1], true
}
