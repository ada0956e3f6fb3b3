// Package similarity scores a query feature vector against persisted
// memory items and returns the top-K matches. Scoring is a deterministic,
// stateless heuristic: Jaccard similarity over tag sets plus exact-match
// indicators on action type, currency, and USD amount bucket.
package similarity

import (
	"sort"

	"github.com/lumyn-labs/lumyn/internal/model"
	"github.com/lumyn-labs/lumyn/internal/normalize"
)

// QueryFeature is the feature vector scored against memory items.
type QueryFeature struct {
	ActionType     string
	AmountCurrency *string
	AmountUSD      *float64
	Tags           []string
}

// FromNormalized builds a QueryFeature from a NormalizedRequest.
func FromNormalized(n model.NormalizedRequest) QueryFeature {
	return QueryFeature{
		ActionType:     n.ActionType,
		AmountCurrency: n.AmountCurrency,
		AmountUSD:      n.AmountUSD,
		Tags:           n.Tags,
	}
}

// TopKMatches scores every candidate against query and returns the
// highest-scoring k, ties broken by memory_id ascending. k<=0 returns no
// matches.
func TopKMatches(query QueryFeature, candidates []model.MemoryItem, k int) []model.SimilarityMatch {
	if k <= 0 {
		return []model.SimilarityMatch{}
	}

	scored := make([]model.SimilarityMatch, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, model.SimilarityMatch{
			MemoryID: c.MemoryID,
			Label:    c.Label,
			Score:    score(query, c),
			Summary:  c.Summary,
		})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].MemoryID < scored[j].MemoryID
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func score(query QueryFeature, item model.MemoryItem) float64 {
	matches := 0

	if item.ActionType == query.ActionType {
		matches++
	}

	itemCurrency, _ := item.Feature["amount_currency"].(string)
	queryCurrency := ""
	if query.AmountCurrency != nil {
		queryCurrency = *query.AmountCurrency
	}
	if itemCurrency == queryCurrency {
		matches++
	}

	if bucketOf(item) == normalize.AmountUSDBucket(query.AmountUSD) {
		matches++
	}

	total := 0.5*jaccard(query.Tags, stringTags(item)) + float64(matches)/6.0
	if total > 1.0 {
		total = 1.0
	}
	return total
}

func bucketOf(item model.MemoryItem) string {
	v, ok := item.Feature["amount_usd"]
	if !ok || v == nil {
		return "null"
	}
	f, ok := v.(float64)
	if !ok {
		return "null"
	}
	return normalize.AmountUSDBucket(&f)
}

func stringTags(item model.MemoryItem) []string {
	raw, ok := item.Feature["tags"].([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[s] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}

	intersection := 0
	union := make(map[string]bool, len(setA)+len(setB))
	for s := range setA {
		union[s] = true
		if setB[s] {
			intersection++
		}
	}
	for s := range setB {
		union[s] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}
