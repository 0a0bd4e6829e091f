// Package errors classifies collaborator failures and retries the transient ones.
//
// Provider clients wrap their failures in the typed errors of this package
// (HTTPError, RateLimitError, TimeoutError, JSONParseError, ValidationError).
// Categorize maps any error to a Category, and WithRetryContext retries an
// operation for as long as its failures are transient.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category says what a caller should do about a failure.
type Category int

const (
	// CategoryTransient failures may pass on retry: rate limits, timeouts,
	// dropped connections, 5xx answers.
	CategoryTransient Category = iota

	// CategoryPermanent failures repeat on retry: bad keys, unknown
	// addresses, cancellation.
	CategoryPermanent

	// CategoryStructural means the collaborator answered but the answer is
	// unusable, such as generated text that is not the JSON asked for.
	CategoryStructural
)

var categoryNames = [...]string{"transient", "permanent", "structural"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// CategorizedError is a failure with its category attached. Retries is the
// number of attempts made when it comes from WithRetryContext.
type CategorizedError struct {
	Err      error
	Category Category
	Retries  int
	Context  string
}

func (e *CategorizedError) Error() string {
	msg := fmt.Sprintf("%s (category: %s, attempts: %d)", e.Err, e.Category, e.Retries)
	if e.Context == "" {
		return msg
	}
	return e.Context + ": " + msg
}

func (e *CategorizedError) Unwrap() error { return e.Err }

// NewCategorized attaches category to err. what names the operation.
func NewCategorized(err error, category Category, what string) *CategorizedError {
	return &CategorizedError{Err: err, Category: category, Context: what}
}

func Transient(err error, what string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, what)
}

func Permanent(err error, what string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, what)
}

func Structural(err error, what string) *CategorizedError {
	return NewCategorized(err, CategoryStructural, what)
}

// httpCategory classifies a provider status code. 429 and every 5xx are
// worth another try; other client errors are not.
func httpCategory(code int) Category {
	if code == http.StatusTooManyRequests || code >= 500 {
		return CategoryTransient
	}
	return CategoryPermanent
}

// classifiers are tried in order; the first that recognizes err decides.
var classifiers = []func(error) (Category, bool){
	func(err error) (Category, bool) {
		return CategoryPermanent, errors.Is(err, context.Canceled)
	},
	func(err error) (Category, bool) {
		var e *CategorizedError
		if errors.As(err, &e) {
			return e.Category, true
		}
		return 0, false
	},
	func(err error) (Category, bool) {
		var e *HTTPError
		if errors.As(err, &e) {
			return httpCategory(e.StatusCode), true
		}
		return 0, false
	},
	func(err error) (Category, bool) {
		var rate *RateLimitError
		var timeout *TimeoutError
		return CategoryTransient, errors.As(err, &rate) || errors.As(err, &timeout) ||
			errors.Is(err, context.DeadlineExceeded)
	},
	func(err error) (Category, bool) {
		var parse *JSONParseError
		var invalid *ValidationError
		return CategoryStructural, errors.As(err, &parse) || errors.As(err, &invalid)
	},
	func(err error) (Category, bool) {
		var netErr net.Error
		return CategoryTransient, errors.As(err, &netErr)
	},
}

// Categorize decides how err should be handled. Unrecognized errors, and
// nil, are permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}
	for _, classify := range classifiers {
		if c, ok := classify(err); ok {
			return c
		}
	}
	return CategoryPermanent
}

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsStructural reports whether the collaborator returned an unusable answer.
func IsStructural(err error) bool {
	return Categorize(err) == CategoryStructural
}
