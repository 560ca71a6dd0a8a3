package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested record is not found.
	NotFound = ErrorKind("Not Found")

	// InvalidArrayLengths is returned when parallel batch arrays differ in length.
	InvalidArrayLengths = ErrorKind("invalid array lengths")

	// InvalidAmountOfTokensToSale rejects a listing with zero quantity or an
	// exclusive asset quantity other than one.
	InvalidAmountOfTokensToSale = ErrorKind("invalid amount of tokens to sale")

	// InvalidAmountOfTokensToPurchase rejects a purchase with zero quantity or an
	// exclusive asset quantity other than one.
	InvalidAmountOfTokensToPurchase = ErrorKind("invalid amount of tokens to purchase")

	// UnsupportedCurrencyEntry is returned when a listing quotes a currency
	// outside the supported-currency set.
	UnsupportedCurrencyEntry = ErrorKind("unsupported currency entry")

	// InvalidCallee is returned when a seller-gated or winner-gated operation is
	// invoked by another party.
	InvalidCallee = ErrorKind("invalid callee")

	// InvalidStatus is returned when a record is not in the status the operation
	// requires.
	InvalidStatus = ErrorKind("invalid status")

	// InvalidApprovedPricePerToken rejects a zero approved price in a sale
	// resolution.
	InvalidApprovedPricePerToken = ErrorKind("invalid approved price per token")

	// InvalidRedemptionPrice rejects a creation that pairs an auction kind with
	// the wrong redemption price.
	InvalidRedemptionPrice = ErrorKind("invalid redemption price")

	// InvalidAuctionTypeForRedemption rejects redemption settlement of a common
	// auction.
	InvalidAuctionTypeForRedemption = ErrorKind("invalid auction type for redemption")

	// InvalidSignature is returned when an authorization signature does not
	// verify against the authorizer key.
	InvalidSignature = ErrorKind("invalid signature")

	// NotUnique is returned when a signature has already been consumed.
	NotUnique = ErrorKind("signature is not unique")

	// InvalidCommissionSum rejects a commission table whose percentages do not
	// sum to exactly 10000 bps.
	InvalidCommissionSum = ErrorKind("invalid commission percentage sum")

	// CommissionTooHigh rejects a commission percentage above the configured cap.
	CommissionTooHigh = ErrorKind("commission percentage too high")

	// InsufficientFunds is returned when attached native funds cannot cover a
	// batch item.
	InsufficientFunds = ErrorKind("insufficient attached funds")

	// ReentrantCall is returned when a fund-distributing operation is entered
	// while another one is still in flight.
	ReentrantCall = ErrorKind("reentrant call")

	Unauthorized       = ErrorKind("unauthorized")
	InvalidArgument    = ErrorKind("invalid argument")
	Unsupported        = ErrorKind("unsupported")
	SomethingWentWrong = ErrorKind("something went wrong")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
