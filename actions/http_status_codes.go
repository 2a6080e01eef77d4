package actions

import "gitlab.com/tng-miniapp/ledger_api/model"

// A list of status codes used inside the application. For more details see: https://httpstatuses.com/

// OK - success
const OK = 200

// Created - resource created
const Created = 201

// BadRequest - sent when a bad request was submitted by the client
const BadRequest = 400

// Unauthorized - when the caller did not present a valid service token
const Unauthorized = 401

// AccessDenied - when the token was issued for another audience
const AccessDenied = 403

// NotFound - the resource identified by the given ID does not exist
const NotFound = 404

// Conflict - the request collides with the current state of the resource
const Conflict = 409

// ValidationFailed - the request is well formed but the funds do not allow it
const ValidationFailed = 422

// ServerError - internal server error
const ServerError = 500

// ServiceUnavailable - the operation is disabled by a feature flag
const ServiceUnavailable = 503

// statusOf maps ledger error codes to response status codes
func statusOf(code model.ErrorCode) int {
	switch code {
	case model.ErrCodeInvalidAmount,
		model.ErrCodeInvalidAsset,
		model.ErrCodeInvalidUser,
		model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidHoldAmount:
		return BadRequest
	case model.ErrCodeInsufficientBalance,
		model.ErrCodeInsufficientAvailableBalance:
		return ValidationFailed
	case model.ErrCodeHoldNotFound,
		model.ErrCodeAssetNotFound:
		return NotFound
	case model.ErrCodeDuplicateIdempotencyKey,
		model.ErrCodeHoldAlreadyReleased,
		model.ErrCodeHoldExpired:
		return Conflict
	default:
		return ServerError
	}
}
