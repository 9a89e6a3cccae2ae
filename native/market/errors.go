package market

import "errors"

// Every error below is terminal for the call that produced it: the ledger
// never retries, the caller corrects the request and resubmits.
var (
	// Validation failures: malformed request, nothing was checked against
	// state beyond the failing predicate.
	ErrExpiryInPast   = errors.New("market: expiry not beyond current height")
	ErrPriceZero      = errors.New("market: price must be positive")
	ErrInvalidFeeRate = errors.New("market: fee rate exceeds maximum")

	// Authorization failures.
	ErrUnauthorised    = errors.New("market: caller not authorised")
	ErrMakerTakerEqual = errors.New("market: maker cannot fulfil own listing")
	ErrUnintendedTaker = errors.New("market: listing restricted to another taker")

	// Consistency failures: supplied references disagree with recorded
	// listing state or the trust policy.
	ErrAssetMismatch                = errors.New("market: asset backend does not match listing")
	ErrPaymentAssetMismatch         = errors.New("market: payment backend does not match listing")
	ErrAssetBackendNotWhitelisted   = errors.New("market: asset backend not whitelisted")
	ErrPaymentBackendNotWhitelisted = errors.New("market: payment backend not whitelisted")

	// Lifecycle failures.
	ErrUnknownListing = errors.New("market: unknown listing")
	ErrListingExpired = errors.New("market: listing expired")
)

var (
	errNilState         = errors.New("market: engine state not configured")
	errNilRegistry      = errors.New("market: backend registry not configured")
	errNilNativeValue   = errors.New("market: native value backend not configured")
	errCustodyUnset     = errors.New("market: custody identity not configured")
	errRecipientUnset   = errors.New("market: fee recipient not configured")
	errBackendNotBound  = errors.New("market: backend not registered")
	errMetadataRequired = errors.New("market: metadata record required")
)
