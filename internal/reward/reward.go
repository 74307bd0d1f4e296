// Package reward turns step info into a scalar reward for each market role.
package reward

import (
	"math"
	"strings"

	"energy-net/internal/model"
)

// Kind selects a reward calculator. The set is closed.
type Kind string

const (
	KindISO  Kind = "iso"
	KindCost Kind = "cost"
)

var Kinds = []Kind{KindISO, KindCost}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindISO, KindCost:
		return k, nil
	default:
		return "", model.NewConfigError("reward.type", "unsupported reward type %q", s)
	}
}

// Info is the subset of a step's outcome a reward depends on.
type Info struct {
	BuyPrice     float64
	SellPrice    float64
	PCSDemand    float64
	Shortfall    float64
	ReserveCost  float64
	DispatchCost float64
}

// PCSPayment is what the PCS pays for its net exchange at the posted prices:
// it buys at BuyPrice and is paid SellPrice for what it sells.
func (i Info) PCSPayment() float64 {
	if i.PCSDemand >= 0 {
		return i.PCSDemand * i.BuyPrice
	}
	return i.PCSDemand * i.SellPrice
}

// Calculator computes one role's reward.
type Calculator interface {
	Kind() Kind
	Compute(info Info) float64
}

func New(kind Kind) (Calculator, error) {
	switch kind {
	case KindISO:
		return ISO{}, nil
	case KindCost:
		return Cost{}, nil
	default:
		return nil, model.NewConfigError("reward.type", "unsupported reward type %q", kind)
	}
}

// ISO rewards the operator: it pays reserve and dispatch and collects the PCS payment.
// When demand went unserved the reward is capped at zero, so the PCS payment
// collected in that step cannot offset the shortfall.
type ISO struct{}

func (ISO) Kind() Kind { return KindISO }

func (ISO) Compute(info Info) float64 {
	r := -(info.ReserveCost + info.DispatchCost) + info.PCSPayment()
	if info.Shortfall > 0 {
		r = math.Min(r, 0)
	}
	return r
}

// Cost rewards a PCS with the negative of its net payment.
type Cost struct{}

func (Cost) Kind() Kind { return KindCost }

func (Cost) Compute(info Info) float64 {
	return -info.PCSPayment()
}
