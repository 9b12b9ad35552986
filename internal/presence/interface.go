package presence

import "context"

// Mirror publishes who is online to an external store so other processes
// (dashboards, notification workers) can read it. Routing never reads it.
type Mirror interface {
	SetOnline(ctx context.Context, userID, username string) error
	SetOffline(ctx context.Context, userID string) error
	OnlineUsers(ctx context.Context) ([]string, error)
	// Reset clears state left by a previous run.
	Reset(ctx context.Context) error
	Close() error
}

// NopMirror is used when no Redis address is configured.
type NopMirror struct{}

func (NopMirror) SetOnline(context.Context, string, string) error { return nil }
func (NopMirror) SetOffline(context.Context, string) error        { return nil }
func (NopMirror) OnlineUsers(context.Context) ([]string, error)   { return nil, nil }
func (NopMirror) Reset(context.Context) error                     { return nil }
func (NopMirror) Close() error                                    { return nil }
