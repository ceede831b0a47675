package enums

import "fmt"

// CheckoutStep is the stepper position of an in-progress checkout session.
type CheckoutStep string

const (
	CheckoutStepAddress CheckoutStep = "address"
	CheckoutStepPayment CheckoutStep = "payment"
	CheckoutStepReview  CheckoutStep = "review"
	CheckoutStepPlacing CheckoutStep = "placing"
	CheckoutStepPlaced  CheckoutStep = "placed"
)

var validCheckoutSteps = []CheckoutStep{
	CheckoutStepAddress,
	CheckoutStepPayment,
	CheckoutStepReview,
	CheckoutStepPlacing,
	CheckoutStepPlaced,
}

var checkoutStepRanks = map[CheckoutStep]int{
	CheckoutStepAddress: 1,
	CheckoutStepPayment: 2,
	CheckoutStepReview:  3,
	CheckoutStepPlacing: 4,
	CheckoutStepPlaced:  5,
}

// Rank orders steps so backward/forward transitions can be compared.
func (c CheckoutStep) Rank() int {
	return checkoutStepRanks[c]
}

// IsValid reports whether the value is a known CheckoutStep.
func (c CheckoutStep) IsValid() bool {
	for _, candidate := range validCheckoutSteps {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutStep converts raw input into a CheckoutStep.
func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range validCheckoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}
