// Package normalize derives the canonical feature view of a decision
// request: action type, currency, a USD-equivalent amount via a fixed
// conversion table, and a sorted, deduplicated, lowercased tag set.
// Normalization is deterministic and side-effect free — it never mutates
// its input and never touches the clock or the network.
package normalize

import (
	"sort"
	"strings"

	"github.com/lumyn-labs/lumyn/internal/model"
)

// rates holds fixed fixture conversion rates to USD. Swapping this table
// silently would change inputs_digest for any request carrying an
// affected currency; it is deliberately not configurable.
var rates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"JPY": 0.0067,
	"CAD": 0.73,
}

// Normalize extracts the NormalizedRequest feature view from req.
func Normalize(req model.Request) model.NormalizedRequest {
	actionType := req.GetString("action.type")

	var currency *string
	var amountUSD *float64
	if c, ok := req.Get("action.amount.currency"); ok {
		if cs, ok := c.(string); ok && cs != "" {
			curr := cs
			currency = &curr
			if v, ok := req.Get("action.amount.value"); ok {
				if usd, ok := convertToUSD(v, cs); ok {
					amountUSD = &usd
				}
			}
		}
	}

	tags := extractTags(req)

	return model.NormalizedRequest{
		ActionType:     actionType,
		AmountCurrency: currency,
		AmountUSD:      amountUSD,
		Tags:           tags,
	}
}

func convertToUSD(value any, currency string) (float64, bool) {
	rate, ok := rates[strings.ToUpper(currency)]
	if !ok {
		return 0, false
	}
	var v float64
	switch x := value.(type) {
	case float64:
		v = x
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	default:
		return 0, false
	}
	return v * rate, true
}

func extractTags(req model.Request) []string {
	raw, ok := req.Get("action.tags")
	if !ok {
		return []string{}
	}
	list, ok := raw.([]any)
	if !ok {
		return []string{}
	}

	seen := make(map[string]bool, len(list))
	var tags []string
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(s)
		if !seen[lower] {
			seen[lower] = true
			tags = append(tags, lower)
		}
	}
	sort.Strings(tags)
	if tags == nil {
		tags = []string{}
	}
	return tags
}

// AmountUSDBucket classifies a USD amount for similarity scoring:
// null -> "null", <50 -> "small", <200 -> "medium", else "large".
func AmountUSDBucket(amountUSD *float64) string {
	if amountUSD == nil {
		return "null"
	}
	switch {
	case *amountUSD < 50:
		return "small"
	case *amountUSD < 200:
		return "medium"
	default:
		return "large"
	}
}
