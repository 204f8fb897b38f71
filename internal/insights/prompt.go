package insights

import (
	"fmt"
	"strings"

	"github.com/zombor/receipt-insights/internal/aggregate"
	"github.com/zombor/receipt-insights/internal/scanning"
)

// EmptyInsightsMessage is returned instead of insights when no receipts exist
const EmptyInsightsMessage = "You have no receipts yet. Start by capturing a few receipts!"

// DefaultCurrency prefixes every amount in the prompts
const DefaultCurrency = "$"

const insightsInstructions = `IMPORTANT INSTRUCTIONS:
- Be CONCISE and DIRECT (150 words at most)
- Use NATURAL, CONVERSATIONAL language, as if talking to a friend
- Avoid heavy markdown (no long lists, no # headings)
- Focus on the main points
- If there is little data, be honest and give practical tips
- If there is a lot of data, highlight interesting patterns
- Use an occasional emoji when it fits (💰 📊 💡)

Answer in short, natural paragraphs.`

const chatInstructions = `Answer in a NATURAL, CONVERSATIONAL and HELPFUL way. Be concise but complete. Use the user's data when relevant. If you don't know something, say so.`

func formatAmount(currency string, c scanning.Cents) string {
	return currency + " " + c.String()
}

// InsightsPrompt asks the model for a short commentary on the spending summary
func InsightsPrompt(summary aggregate.Summary, currency string) string {
	var b strings.Builder
	b.WriteString("You are a friendly personal finance assistant. Analyze this data and share insights in a NATURAL, CONVERSATIONAL way, as if chatting with a friend.\n\n")
	b.WriteString("Data:\n")
	fmt.Fprintf(&b, "- Total receipts: %d\n", summary.Count)
	fmt.Fprintf(&b, "- Total spent: %s\n", formatAmount(currency, summary.GrandTotal))
	b.WriteString("- Spending by category:\n")
	for _, ct := range summary.ByCategory {
		fmt.Fprintf(&b, "  • %s: %s\n", ct.Category, formatAmount(currency, ct.Total))
	}

	top := string(summary.TopCategory)
	if top == "" {
		top = "N/A"
	}
	fmt.Fprintf(&b, "- Top spending category: %s\n\n", top)
	b.WriteString(insightsInstructions)
	return b.String()
}

// ChatPrompt wraps a user question with the spending summary as context
func ChatPrompt(summary aggregate.Summary, currency, question string) string {
	categories := make([]string, 0, len(summary.ByCategory))
	for _, ct := range summary.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %s", ct.Category, formatAmount(currency, ct.Total)))
	}

	var b strings.Builder
	b.WriteString("You are a friendly and helpful personal finance assistant. Use this data from the user to answer:\n\n")
	fmt.Fprintf(&b, "Total receipts: %d\n", summary.Count)
	fmt.Fprintf(&b, "Total spent: %s\n", formatAmount(currency, summary.GrandTotal))
	fmt.Fprintf(&b, "Spending by category: %s\n\n", strings.Join(categories, ", "))
	fmt.Fprintf(&b, "User question: %s\n\n", question)
	b.WriteString(chatInstructions)
	return b.String()
}
