package risk

import "fmt"

// ThrottlePolicy denies re-entry while the hub's cooldown counter for the
// symbol is running.
type ThrottlePolicy struct{}

func NewThrottlePolicy() *ThrottlePolicy { return &ThrottlePolicy{} }

func (ThrottlePolicy) Name() string { return "throttle" }

func (ThrottlePolicy) CheckEntry(ctx Context) (PolicyResult, error) {
	if n := ctx.CooldownTicks[ctx.Symbol]; n > 0 {
		return Denied(fmt.Sprintf("cooldown(%d)", n)), nil
	}
	return Allowed(""), nil
}

func (ThrottlePolicy) SizeHint(Context) (int64, bool, error) { return 0, false, nil }
