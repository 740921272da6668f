package utils

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-automation/pkg/logger"
)

// RecoverFn is a function that handles a recovered panic
type RecoverFn func(r interface{}, stack []byte)

// SafeGo executes the given function in a goroutine with panic recovery
func SafeGo(fn func(), onPanic RecoverFn) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				if onPanic != nil {
					onPanic(r, stack)
					return
				}
				logger.Log.Error("[panic] Recovered from panic in goroutine",
					zap.Any("panic", r),
					zap.ByteString("stack", stack),
				)
			}
		}()
		fn()
	}()
}

// WrapWithContextRecovery wraps a function that takes a context with panic recovery.
// A panic is logged with the context logger and returned as an error.
func WrapWithContextRecovery(fn func(ctx context.Context) error) func(ctx context.Context) (err error) {
	return func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(ctx).Error("[panic] Recovered from panic",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = fmt.Errorf("panic recovered: %v", r)
			}
		}()
		return fn(ctx)
	}
}
