package fee

import (
	"errors"
)

var ErrInvalidPercent = errors.New("fee percent must be in the range [0,100)")

// Policy computes the platform fee split for a listing price. The rate is
// a whole percentage fixed when the policy is created, never per listing.
type Policy struct {
	percent int64
}

func NewPolicy(percent int64) (Policy, error) {
	if percent < 0 || percent >= 100 {
		return Policy{}, ErrInvalidPercent
	}

	return Policy{percent: percent}, nil
}

func (p Policy) Percent() int64 {
	return p.percent
}

// Split returns the platform fee and the total the buyer must remit.
// The fee is truncated to the smallest currency unit so the buyer is
// never overcharged; seller proceeds are always exactly the price.
func (p Policy) Split(price int64) (feeAmount int64, totalCharge int64) {
	feeAmount = price * p.percent / 100

	return feeAmount, price + feeAmount
}
