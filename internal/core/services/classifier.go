package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
)

// Classification is the verdict of Classify on a provider failure.
type Classification int

const (
	// ClassUnrelated is a failure that has nothing to do with credentials.
	ClassUnrelated Classification = iota

	// ClassTransient is an auth-shaped or network failure that may succeed later.
	ClassTransient

	// ClassPermanentRevocation means the grant is gone and only new user
	// consent can restore access (the invalid_grant family).
	ClassPermanentRevocation
)

func (c Classification) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanentRevocation:
		return "permanent_revocation"
	default:
		return "unrelated"
	}
}

var (
	revokedTokenPattern = regexp.MustCompile(`(?i)token.*(revoked|expired)`)
	unauthorizedPattern = regexp.MustCompile(`(?i)\b(401|unauthorized)\b`)
)

// Classify decides how a failure from the provider affects the account.
// Only the invalid_grant family is permanent; cancellation never is.
// Message matching only looks at text the provider sent, or at untyped
// errors; transport errors carry request URLs and TLS causes that must
// never read as a revoked grant.
func Classify(err error) Classification {
	if err == nil {
		return ClassUnrelated
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return ClassPermanentRevocation
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusBadRequest {
			return ClassPermanentRevocation
		}
		if revokedMessage(retrieveErr.ErrorDescription) || revokedMessage(string(retrieveErr.Body)) {
			return ClassPermanentRevocation
		}
		// Any other token endpoint failure (5xx, 401 invalid_client, ...).
		return ClassTransient
	}

	var apiErr *driven.ProviderAPIError
	if errors.As(err, &apiErr) {
		if revokedMessage(apiErr.Message) {
			return ClassPermanentRevocation
		}
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized,
			apiErr.StatusCode == http.StatusForbidden && apiErr.IsRateLimit(),
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return ClassTransient
		}
		return ClassUnrelated
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	msg := err.Error()
	if revokedMessage(msg) {
		return ClassPermanentRevocation
	}
	if unauthorizedPattern.MatchString(msg) {
		return ClassTransient
	}

	return ClassUnrelated
}

func revokedMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "invalid_grant") || revokedTokenPattern.MatchString(msg)
}
