package log

import (
	"context"
	"log/slog"
)

// 上下文键定义
const (
	// RequestContextID HTTP 请求 ID
	RequestContextID = "request_id"

	// RepoContextID 仓库 ID
	RepoContextID = "repo_id"

	// SessionContextID 会话 ID
	SessionContextID = "session_id"
)

// WithRequestID 在上下文中添加请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestContextID, requestID)
}

// WithRepoID 在上下文中添加仓库 ID
func WithRepoID(ctx context.Context, repoID string) context.Context {
	return context.WithValue(ctx, RepoContextID, repoID)
}

// WithSessionID 在上下文中添加会话 ID
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionContextID, sessionID)
}

// LogCtxFromContext 从上下文中提取日志字段
func LogCtxFromContext(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if requestID, ok := ctx.Value(RequestContextID).(string); ok && requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if repoID, ok := ctx.Value(RepoContextID).(string); ok && repoID != "" {
		attrs = append(attrs, slog.String("repo_id", repoID))
	}
	if sessionID, ok := ctx.Value(SessionContextID).(string); ok && sessionID != "" {
		attrs = append(attrs, slog.String("session_id", sessionID))
	}

	return attrs
}
