package ticket

import (
	"encoding/json"
	"strings"

	"tradegate/internal/domain/option"
	"tradegate/pkg/errors"
)

// LegInput is either a StandardLeg or a LegacyLeg. NormalizeLeg converts both
// to the canonical Leg so nothing downstream needs to know which shape arrived.
type LegInput interface {
	isLegInput()
}

// StandardLeg uses the current field names: type, side, qty
type StandardLeg struct {
	Type   option.Kind `json:"type"`
	Side   Side        `json:"side"`
	Strike float64     `json:"strike"`
	Qty    *int        `json:"qty"`
	Delta  *float64    `json:"delta"`
	Vega   *float64    `json:"vega"`
	Gamma  *float64    `json:"gamma"`
	Price  *float64    `json:"price"`
}

// LegacyLeg uses the older field names: option_type, action, quantity
type LegacyLeg struct {
	OptionType option.Kind `json:"option_type"`
	Action     Side        `json:"action"`
	Strike     float64     `json:"strike"`
	Quantity   *int        `json:"quantity"`
	Delta      *float64    `json:"delta"`
	Vega       *float64    `json:"vega"`
	Gamma      *float64    `json:"gamma"`
	Price      *float64    `json:"price"`
}

func (StandardLeg) isLegInput() {}
func (LegacyLeg) isLegInput()   {}

// NormalizeLeg converts either input shape into a Leg.
// Missing kind defaults to put, missing side to sell, missing quantity to 1.
func NormalizeLeg(in LegInput) Leg {
	var leg Leg
	var qty *int

	switch v := in.(type) {
	case StandardLeg:
		leg = Leg{Type: v.Type, Side: v.Side, Strike: v.Strike, Delta: v.Delta, Vega: v.Vega, Gamma: v.Gamma, Price: v.Price}
		qty = v.Qty
	case *StandardLeg:
		if v == nil {
			return NormalizeLeg(StandardLeg{})
		}
		return NormalizeLeg(*v)
	case LegacyLeg:
		leg = Leg{Type: v.OptionType, Side: v.Action, Strike: v.Strike, Delta: v.Delta, Vega: v.Vega, Gamma: v.Gamma, Price: v.Price}
		qty = v.Quantity
	case *LegacyLeg:
		if v == nil {
			return NormalizeLeg(LegacyLeg{})
		}
		return NormalizeLeg(*v)
	}

	if leg.Type == "" {
		leg.Type = option.KindPut
	}
	if leg.Side == "" {
		leg.Side = SideSell
	}
	leg.Qty = 1
	if qty != nil {
		leg.Qty = *qty
	}
	return leg
}

// NormalizeLegs converts a mixed slice of inputs. Nil entries, typed or not, are skipped.
func NormalizeLegs(in []LegInput) []Leg {
	legs := make([]Leg, 0, len(in))
	for _, l := range in {
		if isNilInput(l) {
			continue
		}
		legs = append(legs, NormalizeLeg(l))
	}
	return legs
}

var legacyKeys = []string{"option_type", "action", "quantity"}
var standardKeys = []string{"type", "side", "qty"}

// DecodeLeg picks the input shape from the JSON keys present. An object that
// carries only legacy keys is a LegacyLeg; anything else decodes as StandardLeg.
// An object mixing both naming styles is rejected.
func DecodeLeg(raw []byte) (LegInput, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "leg must be a JSON object")
	}

	legacy := presentKeys(keys, legacyKeys)
	standard := presentKeys(keys, standardKeys)
	if len(legacy) > 0 && len(standard) > 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"leg mixes key styles: %s with %s",
			strings.Join(standard, ","), strings.Join(legacy, ","))
	}

	if len(legacy) > 0 {
		var l LegacyLeg
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "decode legacy leg: %v", err)
		}
		return l, nil
	}

	var s StandardLeg
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "decode leg: %v", err)
	}
	return s, nil
}

// DecodeLegs decodes a JSON array of legs in either shape
func DecodeLegs(raw []byte) ([]LegInput, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, "legs must be a JSON array")
	}

	out := make([]LegInput, 0, len(items))
	for i, item := range items {
		leg, err := DecodeLeg(item)
		if err != nil {
			return nil, errors.Wrapf(err, "leg %d", i)
		}
		out = append(out, leg)
	}
	return out, nil
}

func presentKeys(m map[string]json.RawMessage, keys []string) []string {
	var found []string
	for _, k := range keys {
		if _, ok := m[k]; ok {
			found = append(found, k)
		}
	}
	return found
}

func isNilInput(l LegInput) bool {
	switch v := l.(type) {
	case nil:
		return true
	case *StandardLeg:
		return v == nil
	case *LegacyLeg:
		return v == nil
	}
	return false
}
