package normalize

import (
	"testing"

	"github.com/lumyn-labs/lumyn/internal/model"
)

func TestNormalizeBasic(t *testing.T) {
	r := model.Request{
		"action": map[string]any{
			"type":   "support.refund",
			"tags":   []any{"VIP", "vip", "Urgent"},
			"amount": map[string]any{"value": float64(100), "currency": "USD"},
		},
	}
	n := Normalize(r)
	if n.ActionType != "support.refund" {
		t.Fatalf("unexpected action type: %s", n.ActionType)
	}
	if n.AmountCurrency == nil || *n.AmountCurrency != "USD" {
		t.Fatalf("unexpected currency: %v", n.AmountCurrency)
	}
	if n.AmountUSD == nil || *n.AmountUSD != 100 {
		t.Fatalf("unexpected amount_usd: %v", n.AmountUSD)
	}
	want := []string{"urgent", "vip"}
	if len(n.Tags) != len(want) {
		t.Fatalf("expected %v, got %v", want, n.Tags)
	}
	for i, tag := range want {
		if n.Tags[i] != tag {
			t.Fatalf("expected %v, got %v", want, n.Tags)
		}
	}
}

func TestNormalizeEmptyTagsIsEmptySliceNotNil(t *testing.T) {
	r := model.Request{"action": map[string]any{"type": "x"}}
	n := Normalize(r)
	if n.Tags == nil || len(n.Tags) != 0 {
		t.Fatalf("expected empty non-nil tags, got %v", n.Tags)
	}
}

func TestNormalizeUnknownCurrencyYieldsNullAmount(t *testing.T) {
	r := model.Request{
		"action": map[string]any{
			"type":   "x",
			"amount": map[string]any{"value": float64(10), "currency": "ZZZ"},
		},
	}
	n := Normalize(r)
	if n.AmountCurrency == nil || *n.AmountCurrency != "ZZZ" {
		t.Fatalf("expected currency preserved even if unconvertible, got %v", n.AmountCurrency)
	}
	if n.AmountUSD != nil {
		t.Fatalf("expected nil amount_usd for unknown currency, got %v", *n.AmountUSD)
	}
}

func TestAmountUSDBucket(t *testing.T) {
	small := 10.0
	medium := 100.0
	large := 1000.0
	if AmountUSDBucket(nil) != "null" {
		t.Fatal("expected null bucket for nil amount")
	}
	if AmountUSDBucket(&small) != "small" {
		t.Fatal("expected small bucket")
	}
	if AmountUSDBucket(&medium) != "medium" {
		t.Fatal("expected medium bucket")
	}
	if AmountUSDBucket(&large) != "large" {
		t.Fatal("expected large bucket")
	}
}
