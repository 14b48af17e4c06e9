package authorization

import (
	"context"
	"errors"
)

// Actor is the authenticated caller being checked.
type Actor struct {
	UserID string
	Admin  bool
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
