package types

import (
	"context"
	"fmt"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxCompanyID ContextKey = "ctx_company_id"
	CtxUserID    ContextKey = "ctx_user_id"

	// Default values
	DefaultCompanyID = "00000000-0000-0000-0000-000000000000"
	DefaultUserID    = "00000000-0000-0000-0000-000000000000"
)

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

func GetCompanyID(ctx context.Context) string {
	if companyID, ok := ctx.Value(CtxCompanyID).(string); ok {
		return companyID
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

// SetCompanyID sets the company ID in the context
func SetCompanyID(ctx context.Context, companyID string) context.Context {
	return context.WithValue(ctx, CtxCompanyID, companyID)
}

// SetUserID sets the user ID in the context
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

// ValidateCompanyContext validates that the required company context fields are present
func ValidateCompanyContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context is nil")
	}

	companyID := GetCompanyID(ctx)
	if companyID == "" {
		return fmt.Errorf("no company context found in context")
	}

	return nil
}
