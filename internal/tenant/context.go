package tenant

import (
	"context"
	"errors"
)

type contextKey string

const (
	companyIDKey contextKey = "companyID"
	runIDKey     contextKey = "runID"
)

// ErrCompanyIDNotFound is returned when no company ID is found in context
var ErrCompanyIDNotFound = errors.New("company ID not found in context")

// ErrRunIDNotFound is returned when no automation run ID is found in context
var ErrRunIDNotFound = errors.New("run ID not found in context")

// WithCompanyID adds the company (tenant) ID to the context
func WithCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, companyIDKey, companyID)
}

// FromContext extracts the company ID from the context
func FromContext(ctx context.Context) (string, error) {
	companyID, ok := ctx.Value(companyIDKey).(string)
	if !ok || companyID == "" {
		return "", ErrCompanyIDNotFound
	}
	return companyID, nil
}

// CompanyOrUnknown returns the company ID from the context, or "unknown" for metric labels.
func CompanyOrUnknown(ctx context.Context) string {
	companyID, err := FromContext(ctx)
	if err != nil {
		return "unknown"
	}
	return companyID
}

// WithRunID tags the context with the ID of the automation run it belongs to
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the automation run ID from the context
func RunIDFromContext(ctx context.Context) (string, error) {
	runID, ok := ctx.Value(runIDKey).(string)
	if !ok || runID == "" {
		return "", ErrRunIDNotFound
	}
	return runID, nil
}
