package recovery

import "context"

// StrictStrategy is the only recovery.Strategy pdfdoc.Parse ever configures:
// this editor has no best-effort open mode, so any parse error fails the
// whole open rather than patching around it.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx context.Context, err error, location Location) Action {
	return ActionFail
}
