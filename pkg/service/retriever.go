package service

import (
	"strings"

	"github.com/botconsulting/botgpt/pkg/db"
)

// DefaultRetrievalTopK is the number of excerpts sent with a RAG turn.
const DefaultRetrievalTopK = 2

// minSpecificQueryWords is the word count below which a query is treated as
// a request for general context.
const minSpecificQueryWords = 4

// Retrieve picks up to k document excerpts for query.
//
// Queries that ask for a summary, or are too short to match on, get the first
// k documents in the order supplied. Other queries get the first k documents
// whose content contains the query as a case-insensitive substring.
func Retrieve(documents []db.Document, query string, k int) []string {
	if k <= 0 || len(documents) == 0 {
		return []string{}
	}

	q := strings.ToLower(query)
	generic := strings.Contains(q, "summar") || len(strings.Fields(q)) < minSpecificQueryWords

	chunks := make([]string, 0, min(k, len(documents)))
	for _, doc := range documents {
		if len(chunks) == k {
			break
		}
		if generic || strings.Contains(strings.ToLower(doc.Content), q) {
			chunks = append(chunks, doc.Content)
		}
	}
	return chunks
}
