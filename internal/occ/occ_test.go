package occ

import "testing"

func TestIsOptionSymbol(t *testing.T) {
	cases := map[string]bool{
		"AAPL240119C00150000": true,
		"SPY240315P00450000":  true,
		"AAPL":                false,
		"TSLA":                false,
		"":                    false,
		"AAPL240119X00150000": false, // invalid type char
		"A240119C0015000":     false, // strike tail too short
	}
	for symbol, want := range cases {
		if got := IsOptionSymbol(symbol); got != want {
			t.Errorf("IsOptionSymbol(%q) = %v, want %v", symbol, got, want)
		}
	}
}

func TestParseCall(t *testing.T) {
	p, ok := Parse("AAPL240119C00150000")
	if !ok {
		t.Fatal("expected a successful parse")
	}
	if p.Underlying != "AAPL" {
		t.Errorf("underlying = %q, want AAPL", p.Underlying)
	}
	if p.OptionType != "call" {
		t.Errorf("option type = %q, want call", p.OptionType)
	}
	if p.Strike != 150.0 {
		t.Errorf("strike = %v, want 150.0", p.Strike)
	}
	if p.Expiry != "01/19/2024" {
		t.Errorf("expiry = %q, want 01/19/2024", p.Expiry)
	}
	if p.Multiplier != DefaultMultiplier {
		t.Errorf("multiplier = %v, want %v", p.Multiplier, DefaultMultiplier)
	}
}

func TestParsePutFractionalStrike(t *testing.T) {
	p, ok := Parse("SPY240315P00450500")
	if !ok {
		t.Fatal("expected a successful parse")
	}
	if p.OptionType != "put" {
		t.Errorf("option type = %q, want put", p.OptionType)
	}
	if p.Strike != 450.5 {
		t.Errorf("strike = %v, want 450.5", p.Strike)
	}
}

func TestParseRejectsStock(t *testing.T) {
	if _, ok := Parse("AAPL"); ok {
		t.Error("expected Parse to reject a plain stock ticker")
	}
}

func TestFormatRoundTrips(t *testing.T) {
	original := "AAPL240119C00150000"
	p, ok := Parse(original)
	if !ok {
		t.Fatal("expected a successful parse")
	}
	formatted, err := Format(p.Underlying, p.OptionType, p.Strike, p.Expiry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if formatted != original {
		t.Errorf("Format round-trip = %q, want %q", formatted, original)
	}
}
