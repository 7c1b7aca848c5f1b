package summarizer

import (
	"fmt"
	"strings"
)

// Greeting is the fixed opening every briefing starts with.
const Greeting = "Good morning, and welcome to your commute briefing."

// systemPrompt instructs the model to produce plain spoken narration.
func systemPrompt(minWords, maxWords int) string {
	return fmt.Sprintf(`You are the narrator of a personal commute briefing podcast.
Condense the articles below into one continuous spoken script.

Rules:
- Begin with exactly this greeting: %q
- Write for the ear: short sentences, natural transitions between topics.
- No markdown, no headings, no bullet points, no stage directions.
- Aim for %d to %d words in total.
- End with a brief sign-off wishing the listener a good commute.`, Greeting, minWords, maxWords)
}

// buildPrompt concatenates the queued articles as labeled segments.
func buildPrompt(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "--- Article %d: %s ---\n%s", i+1, seg.Title, seg.Content)
	}
	return b.String()
}
