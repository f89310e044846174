package domain

import "context"

// HookEvent names a point in a catalog entity's lifecycle.
type HookEvent string

const (
	BeforeCreate HookEvent = "before_create"
	BeforeUpdate HookEvent = "before_update"
	BeforeDelete HookEvent = "before_delete"
)

// Hook may mutate entity (e.g. assign a code) or veto the operation.
type Hook[T any] func(ctx context.Context, entity T) error

// HookRegistry runs hooks per event in registration order.
type HookRegistry[T any] struct {
	hooks map[HookEvent][]Hook[T]
}

func NewHookRegistry[T any]() *HookRegistry[T] {
	return &HookRegistry[T]{hooks: map[HookEvent][]Hook[T]{}}
}

// On appends hooks for event.
func (r *HookRegistry[T]) On(event HookEvent, hooks ...Hook[T]) {
	r.hooks[event] = append(r.hooks[event], hooks...)
}

// Run stops at the first hook that fails and returns its error unchanged,
// so AppErrors keep their code.
func (r *HookRegistry[T]) Run(ctx context.Context, event HookEvent, entity T) error {
	for _, h := range r.hooks[event] {
		if err := h(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}
