package billing

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tariff is one purchasable package: a number of transcription minutes
// and its price in whole rubles.
type Tariff struct {
	Minutes   int   `yaml:"minutes" json:"minutes"`
	AmountRub int64 `yaml:"amount_rub" json:"amount_rub"`
}

// Pricing resolves minutes to a ruble price. Sizes present in the fixed
// table are priced exactly; everything else falls back to the formula
// minutes*2.5 + 20, truncated to whole rubles.
type Pricing struct {
	fixed map[int]int64
}

func DefaultPricing() *Pricing {
	return &Pricing{fixed: map[int]int64{
		10:  49,
		30:  129,
		60:  199,
		300: 790,
		600: 1490,
	}}
}

// LoadPricing reads a tariff table from a YAML file, replacing the
// default table entirely.
func LoadPricing(path string) (*Pricing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tariffs file: %w", err)
	}

	var doc struct {
		Tariffs []Tariff `yaml:"tariffs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tariffs file %s: %w", path, err)
	}
	if len(doc.Tariffs) == 0 {
		return nil, fmt.Errorf("tariffs file %s lists no tariffs", path)
	}

	fixed := make(map[int]int64, len(doc.Tariffs))
	for _, t := range doc.Tariffs {
		if t.Minutes <= 0 || t.AmountRub <= 0 {
			return nil, fmt.Errorf("tariffs file %s: invalid entry %d min / %d rub", path, t.Minutes, t.AmountRub)
		}
		fixed[t.Minutes] = t.AmountRub
	}
	return &Pricing{fixed: fixed}, nil
}

// AmountRub returns the price for the given number of minutes.
func (p *Pricing) AmountRub(minutes int) int64 {
	if amount, ok := p.fixed[minutes]; ok {
		return amount
	}
	return int64(float64(minutes)*2.5 + 20)
}

// SecondsFor converts a purchase size into the seconds credited on a
// successful payment.
func SecondsFor(minutes int) float64 {
	return float64(minutes) * 60
}

// Tariffs lists the fixed table sorted by size, for menus and exports.
func (p *Pricing) Tariffs() []Tariff {
	out := make([]Tariff, 0, len(p.fixed))
	for minutes, amount := range p.fixed {
		out = append(out, Tariff{Minutes: minutes, AmountRub: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minutes < out[j].Minutes })
	return out
}
