package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Connection / routing
	FieldClientID   = "client_id"
	FieldEventType  = "event_type"
	FieldChatID     = "chat_id"
	FieldMessageID  = "message_id"
	FieldCallID     = "call_id"
	FieldReceiverID = "receiver_id"
	FieldRecipients = "recipients"
	FieldOperation  = "op"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
