package models

import "errors"

// Error taxonomy shared by the stores and services. Callers match with
// errors.Is; the wrapped message carries the operation-specific detail.
var (
	// ErrRateFetchFailed: the rate provider could not be reached or returned
	// garbage. Recoverable; the next call retries the fetch.
	ErrRateFetchFailed = errors.New("exchange rate fetch failed")

	// ErrAuthenticationFailed: bad credentials, or the refresh-token exchange
	// failed. Terminal until the user re-authenticates.
	ErrAuthenticationFailed = errors.New("broker authentication failed")

	// ErrBrokerRequestFailed: transient broker API error on a data fetch.
	ErrBrokerRequestFailed = errors.New("broker request failed")

	// ErrStoreWriteFailed: persistence failure. Never swallowed; risks
	// cost-basis corruption if ignored.
	ErrStoreWriteFailed = errors.New("store write failed")

	// ErrDeserializationFailed: a persisted row did not parse into its typed
	// record.
	ErrDeserializationFailed = errors.New("store row deserialization failed")

	// ErrOversellDetected: a sell-class operation exceeded the held quantity.
	// The quantity is clamped at zero and the condition surfaced.
	ErrOversellDetected = errors.New("oversell detected")
)
