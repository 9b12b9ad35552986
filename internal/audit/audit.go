package audit

import (
	"context"

	"github.com/weiawesome/wes-io-messenger/pkg/log"
)

// Audit actions for the messenger.
const (
	ActionAuth          = "session.auth"
	ActionLogout        = "session.logout"
	ActionDisconnect    = "session.disconnect"
	ActionMessageDelete = "message.delete"
	ActionCallStart     = "call.start"
	ActionCallEnd       = "call.end"
	ActionChatCreate    = "chat.create"
	ActionUpload        = "file.upload"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, userID, targetID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, userID, targetID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Str(FieldDetail, detail).
		Msg(msg)
}
