// Package handler maps engine results onto the response envelope every
// operation of the API shares: {status, result, error} where exactly one of
// result/error is meaningful, and error is one member of the operation's
// closed union.
package handler

import "github.com/iliyamo/train-ticket-market/internal/engine"

// Error union member names, as they appear on the wire.
const (
	codeUnknown           = "UnknownError"
	codeNotFound          = "NotFoundError"
	codeTimeout           = "TimeoutError"
	codeInsufficientFunds = "InsufficientFundsError"
	codeCancelExpired     = "CancellationPeriodExpiredError"
)

type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Status string     `json:"status"`
	Result any        `json:"result"`
	Error  *errorView `json:"error"`
}

func okEnvelope(result any) envelope {
	return envelope{Status: "Ok", Result: result}
}

func errEnvelope(result any, view errorView) envelope {
	return envelope{Status: "Error", Result: result, Error: &view}
}

// bookingErrorView picks from the booking union: TimeoutError |
// InsufficientFundsError | UnknownError.  Inventory exhaustion has no
// dedicated member, so it lands in UnknownError with its real message.
func bookingErrorView(err error) errorView {
	switch engine.KindOf(err) {
	case engine.KindTimeout:
		return errorView{Code: codeTimeout, Message: err.Error()}
	case engine.KindInsufficientFunds:
		return errorView{Code: codeInsufficientFunds, Message: err.Error()}
	default:
		return errorView{Code: codeUnknown, Message: err.Error()}
	}
}

// cancelErrorView picks from the cancellation union, which adds
// CancellationPeriodExpiredError on top of the booking one.
func cancelErrorView(err error) errorView {
	if engine.KindOf(err) == engine.KindCancellationExpired {
		return errorView{Code: codeCancelExpired, Message: err.Error()}
	}
	return bookingErrorView(err)
}

// readErrorView picks from the read union: NotFoundError | UnknownError.
func readErrorView(err error) errorView {
	if engine.KindOf(err) == engine.KindNotFound {
		return errorView{Code: codeNotFound, Message: err.Error()}
	}
	return errorView{Code: codeUnknown, Message: err.Error()}
}
