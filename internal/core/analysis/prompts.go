package analysis

import (
	"github.com/zaeemkhan1999/AI-Analysis-And-Testing-Platform/internal/models"
)

// DefaultTemplates returns the built-in prompt templates seeded by the
// init endpoint. IDs and timestamps are assigned at insert time.
func DefaultTemplates() []models.PromptTemplate {
	docVar := []models.TemplateVariable{{Name: "document_content", Required: true}}

	return []models.PromptTemplate{
		{
			Name:          "Executive Summary",
			Category:      models.CategorySummary,
			Description:   "Generate a concise executive summary",
			PromptText:    "Provide a concise executive summary of the following document in 3-5 bullet points: {document_content}",
			Variables:     docVar,
			ExampleOutput: "• Key finding 1\n• Key finding 2\n• Key finding 3",
			IsPublic:      true,
		},
		{
			Name:          "Key Insights",
			Category:      models.CategoryAnalysis,
			Description:   "Extract the most important insights",
			PromptText:    "Analyze this document and extract the 5 most important insights: {document_content}",
			Variables:     docVar,
			ExampleOutput: "1. Insight 1\n2. Insight 2\n3. Insight 3\n4. Insight 4\n5. Insight 5",
			IsPublic:      true,
		},
		{
			Name:          "Action Items",
			Category:      models.CategoryExtraction,
			Description:   "List all action items and tasks",
			PromptText:    "List all action items, tasks, or next steps mentioned in this document: {document_content}",
			Variables:     docVar,
			ExampleOutput: "• Action item 1\n• Action item 2\n• Action item 3",
			IsPublic:      true,
		},
		{
			Name:          "Financial Figures",
			Category:      models.CategoryExtraction,
			Description:   "Extract financial data and numbers",
			PromptText:    "Extract all financial figures, amounts, and percentages from this document: {document_content}",
			Variables:     docVar,
			ExampleOutput: "$1,000,000 - Revenue\n25% - Growth rate\n$500,000 - Profit",
			IsPublic:      true,
		},
		{
			Name:          "Sentiment Analysis",
			Category:      models.CategoryAnalysis,
			Description:   "Analyze the sentiment and tone",
			PromptText:    "Analyze the sentiment and overall tone of this document. Is it positive, negative, or neutral? Explain your reasoning: {document_content}",
			Variables:     docVar,
			ExampleOutput: "Sentiment: Positive\nReasoning: The document contains optimistic language...",
			IsPublic:      true,
		},
	}
}
