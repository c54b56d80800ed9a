package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// HTTP Headers
	HeaderContentType = "Content-Type"
	HeaderXRequestID  = "X-Request-ID"
	// HeaderMemberID carries the authenticated member, set by the fronting
	// membership service.
	HeaderMemberID = "X-Member-ID"

	// Content Types
	ContentTypeForm = "application/x-www-form-urlencoded"

	// Context keys
	ContextKeyMemberID = "member_id"

	// Database table names
	TableSubscriptions = "subscriptions"
	TableMembers       = "members"

	// Error messages
	ErrMsgInternalServerError = "Internal server error occurred"
	ErrMsgUnauthorized        = "Unauthorized access"
	ErrMsgAlreadySubscriber   = "already_subscriber"
)
