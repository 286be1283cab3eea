package apperrors

import (
	"errors"
)

var (
	ErrTokenNotFound      = errors.New("token record not found")
	ErrTokenRecordInvalid = errors.New("token record is invalid")
	ErrTokenExpired       = errors.New("access token is expired")

	// Exchange of the one-time authorization code failed.
	// The code is single-use: the customer has to re-authorize, not retry.
	ErrCodeExchangeFailed = errors.New("authorization code exchange failed")

	// Refresh grant rejected by the authorization server.
	// Terminal for the customer until re-authorization.
	ErrRefreshFailed = errors.New("token refresh failed")

	// Another worker rotated the token while this refresh was in flight.
	// The stored record is newer than the one this refresh started from.
	ErrRefreshSuperseded = errors.New("token refresh superseded by a newer rotation")

	ErrStateInvalid = errors.New("authorization state is invalid")

	ErrDocumentNotFound = errors.New("data document not found")
	ErrFolderInvalid    = errors.New("customer folder name is invalid")
)
