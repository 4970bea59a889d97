package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldNickname = "nickname"

	// Realtime
	FieldConnID  = "conn_id"
	FieldRoomID  = "room_id"
	FieldEvent   = "event"
	FieldMsgID   = "message_id"
	FieldUsers   = "user_count"
	FieldChannel = "channel"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
