package auth

import (
	"context"
)

type contextKey string

const subjectKey contextKey = "subject"

// GetSubjectFromContext retrieves the admin subject from the context
func GetSubjectFromContext(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectKey).(string); ok {
		return sub
	}
	return ""
}

// SetSubjectInContext sets the admin subject in the context
func SetSubjectInContext(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}
