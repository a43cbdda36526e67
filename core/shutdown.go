package core

import (
	"context"
)

// ShutdownFunc releases one resource during shutdown. It should honour the
// context deadline and be safe to call twice.
//
//	var closeStore ShutdownFunc = func(ctx context.Context) error {
//	    return store.Close()
//	}
type ShutdownFunc func(ctx context.Context) error
