package jquants

import (
	"errors"
	"regexp"
	"strings"
)

var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// SubscriptionPeriod recognizes the error the API returns when a requested
// date range falls outside the account's subscription period. The message
// states the valid period, e.g.
//
//	This API is available only during your subscription period
//	(2024-09-01 to 2025-08-31).
//
// It returns the first and last date found in the message and ok=true, or
// ok=false for any other error.
func SubscriptionPeriod(err error) (from, to string, ok bool) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "", "", false
	}
	if !strings.Contains(strings.ToLower(apiErr.Message), "subscription") {
		return "", "", false
	}

	dates := isoDatePattern.FindAllString(apiErr.Message, -1)
	if len(dates) < 2 {
		return "", "", false
	}
	return dates[0], dates[len(dates)-1], true
}
