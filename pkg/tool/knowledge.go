package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/weavegraph/weave/pkg/knowledge"
)

// NewKnowledgeSearch returns a tool that searches the given retriever and
// formats hits for the model.
func NewKnowledgeSearch(retriever knowledge.Retriever) Definition {
	return Definition{
		Name:        "knowledge_search",
		Description: "Searches the knowledge base for information relevant to a query",
		Parameters: []Parameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "Search query",
				Required:    true,
			},
			{
				Name:        "max_results",
				Type:        "integer",
				Description: "Maximum number of results to return",
				Default:     5,
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return "", fmt.Errorf("query cannot be empty")
			}

			k := 5
			switch n := args["max_results"].(type) {
			case float64:
				k = int(n)
			case int:
				k = n
			}

			docs, err := retriever.Search(ctx, query, k)
			if err != nil {
				return "", fmt.Errorf("knowledge search failed: %w", err)
			}
			if len(docs) == 0 {
				return fmt.Sprintf("No relevant information found for %q.", query), nil
			}
			return formatSearchResults(query, docs), nil
		},
	}
}

func formatSearchResults(query string, docs []knowledge.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Results for %q:\n", query)
	for i, doc := range docs {
		content := doc.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Fprintf(&b, "\nResult %d (score %.4f):\n%s\n", i+1, doc.Score, content)
		if src, ok := doc.Metadata["source"]; ok {
			fmt.Fprintf(&b, "Source: %v\n", src)
		}
	}
	fmt.Fprintf(&b, "\nFound %d relevant documents.", len(docs))
	return b.String()
}
