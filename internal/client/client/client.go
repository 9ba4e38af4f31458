package client

import (
	"context"
	"encoding/json"
)

type Client interface {
	Login(ctx context.Context, username string, password []byte) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Post(ctx context.Context, path string, body any) (json.RawMessage, error)
	Session() Session
}
