package judge

import (
	"fmt"
	"strings"

	"github.com/blockmatelabs/blockmated/internal/user"
)

// systemPrompt instructs the oracle on its role and the response contract.
const systemPrompt = `You help users fight their dependence on distracting applications.
Your task is to analyze the user's request to open an app and give a reasoned answer.

Be friendly and supportive.
If the request is aligned with the user's goals, allow it.
If it looks like a distraction, deny it and propose an alternative.

Response format (JSON):
{
    "decision": "allow" or "deny",
    "message": "a personal message to the user",
    "alternative": "an alternative suggestion (only when decision=deny)"
}`

// renderUserPrompt builds the per-request prompt embedding the user's
// declared goals and rules. An absent duration renders as "unspecified".
func renderUserPrompt(text string, durationMinutes *int, uc user.Context) string {
	duration := "unspecified"
	if durationMinutes != nil {
		duration = fmt.Sprintf("%d minutes", *durationMinutes)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The user wants: %s (duration: %s)\n\n", text, duration)
	fmt.Fprintf(&b, "User goals:\n%s\n\n", bulletList(uc.Goals))
	fmt.Fprintf(&b, "Allowed usecases:\n%s\n\n", bulletList(uc.AllowedUsecases))
	fmt.Fprintf(&b, "Forbidden usecases:\n%s\n\n", bulletList(uc.ForbiddenUsecases))
	b.WriteString("Analyze the request and answer in the JSON format.")
	return b.String()
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "Not specified"
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}
