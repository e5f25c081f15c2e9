package enrich

import (
	"fmt"
	"strings"

	"redscout/internal/types"
)

const systemPrompt = "You are a product researcher analyzing community discussions for unmet needs. " +
	"Respond with ONLY a valid JSON object. No markdown, no code blocks, no explanation."

// buildPrompt constructs the per-post enrichment prompt.
func buildPrompt(post types.RawPost, comments []types.RawComment, schema Schema) string {
	var sb strings.Builder

	sb.WriteString("Analyze the following post from r/" + post.Subreddit + ".\n\n")
	sb.WriteString(fmt.Sprintf("## Post\nTitle: %s\nAuthor: u/%s\n", post.Title, post.Author))
	if post.SelfText != "" {
		sb.WriteString("Body:\n" + post.SelfText + "\n")
	}

	if len(comments) > 0 {
		sb.WriteString("\n## Top Comments\n")
		for i, c := range comments {
			sb.WriteString(fmt.Sprintf("%d. u/%s (score %d): %s\n", i+1, c.Author, c.Score, c.Body))
		}
	}

	sb.WriteString("\n## Task\n\n")
	sb.WriteString("Return a JSON object with exactly these fields:\n")
	sb.WriteString("1. analysis (string): What is the author's situation, and what need or problem does the discussion reveal?\n")
	sb.WriteString(fmt.Sprintf("2. sentiment (string): Exactly one of: %s\n", strings.Join(schema.Labels, ", ")))

	if schema.Scored() {
		sb.WriteString("3. solution_quality (string): How well existing solutions mentioned in the discussion address the need.\n")
		sb.WriteString("4. opportunity_score (integer 1-5): Strength of the unmet need. 5 = strong, widely validated pain; 1 = no real opportunity.\n")
		sb.WriteString("5. key_pain_points (array of strings, max 3): The concrete pain points expressed.\n\n")
		sb.WriteString(`Example: {"analysis": "...", "sentiment": "unsolved_problem", "solution_quality": "...", "opportunity_score": 4, "key_pain_points": ["..."]}`)
	} else {
		sb.WriteString("\n")
		sb.WriteString(`Example: {"analysis": "...", "sentiment": "need help"}`)
	}
	sb.WriteString("\n")

	return sb.String()
}
