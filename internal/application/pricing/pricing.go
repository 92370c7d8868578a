// Package pricing resolves the charged price of a listing and splits it
// between the platform and the seller.
package pricing

import (
	"fmt"

	"promptmarket/internal/domain"
	"promptmarket/internal/pkg/apperror"
	"promptmarket/internal/pkg/money"
)

// tolerance is how far a buyer-supplied amount may drift from a fixed price.
const tolerance money.Cents = 1

var (
	ErrInvalidAmount    = apperror.New(apperror.KindBusiness, "The amount does not match the listing price")
	ErrMissingAmount    = apperror.New(apperror.KindBusiness, "An amount is required for pay-what-you-want prompts")
	ErrBelowMinimum     = apperror.New(apperror.KindBusiness, "The amount is below the minimum price")
	ErrNegativeAmount   = apperror.New(apperror.KindBusiness, "The amount must not be negative")
	ErrUnknownPriceType = apperror.New(apperror.KindBusiness, "Unknown price type")
	ErrInvalidRate      = apperror.New(apperror.KindInternal, "Commission rate must be between 0 and 1")
)

// Resolve returns the price a buyer is charged for listing. custom is the
// buyer-supplied amount, nil when none was sent.
func Resolve(listing *domain.Listing, custom *money.Cents) (money.Cents, error) {
	if custom != nil && *custom < 0 {
		return 0, ErrNegativeAmount
	}
	switch listing.PriceType {
	case domain.PriceTypeFree:
		if custom != nil && *custom != 0 {
			return 0, ErrInvalidAmount
		}
		return 0, nil
	case domain.PriceTypeFixed:
		if custom != nil && (*custom-listing.Price).Abs() > tolerance {
			return 0, ErrInvalidAmount
		}
		return listing.Price, nil
	case domain.PriceTypePayWhatYouWant:
		if custom == nil {
			return 0, ErrMissingAmount
		}
		var minimum money.Cents
		if listing.MinimumPrice != nil {
			minimum = *listing.MinimumPrice
		}
		if *custom < minimum {
			return 0, ErrBelowMinimum
		}
		// Already at cent precision, which is round(amount, 2).
		return *custom, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPriceType, listing.PriceType)
}

// Split divides price into the platform fee and the seller's earnings.
// The fee is rounded to the cent and earnings take the remainder, so
// fee + earnings == price always holds.
func Split(price money.Cents, rate float64) (fee, earnings money.Cents, err error) {
	if !(rate >= 0 && rate <= 1) {
		return 0, 0, ErrInvalidRate
	}
	fee = price.MulRate(rate)
	return fee, price - fee, nil
}
