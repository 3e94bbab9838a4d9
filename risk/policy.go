package risk

import (
	"errors"
	"fmt"

	"github.com/rustyeddy/daytrader/internal/errs"
)

// Policy is one independent entry check.
//
// CheckEntry returns the policy's verdict for ctx.Symbol at ctx.Price.
// SizeHint returns the policy's maximum order quantity; ok is false when the
// policy has no opinion on size.
type Policy interface {
	Name() string
	CheckEntry(ctx Context) (PolicyResult, error)
	SizeHint(ctx Context) (qty int64, ok bool, err error)
}

// Error kinds carried in PolicyError and surfaced as "error:<kind>" reasons.
const (
	KindFailed = "failed"
	KindPanic  = "panic"
	KindShape  = "shape"
)

// PolicyError reports a policy that failed, panicked or returned a result the
// gate could not interpret. It wraps errs.ErrPolicy.
type PolicyError struct {
	Policy string
	Kind   string
	Err    error
}

func (e *PolicyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("policy %s: %s", e.Policy, e.Kind)
	}
	return fmt.Sprintf("policy %s: %s: %v", e.Policy, e.Kind, e.Err)
}

func (e *PolicyError) Unwrap() []error {
	if e.Err == nil {
		return []error{errs.ErrPolicy}
	}
	return []error{errs.ErrPolicy, e.Err}
}

func kindOf(err error) string {
	var pe *PolicyError
	if errors.As(err, &pe) && pe.Kind != "" {
		return pe.Kind
	}
	return KindFailed
}

// Normalize converts the result shapes older checks produce into a
// PolicyResult: a bare bool, a PolicyResult (or pointer to one), or a map with
// "allow", "scale", "force_flatten", "reason" and "max_qty_hint" keys.
// Anything else is a PolicyError of kind "shape".
func Normalize(v any) (PolicyResult, error) {
	switch r := v.(type) {
	case PolicyResult:
		return r, nil
	case *PolicyResult:
		if r == nil {
			break
		}
		return *r, nil
	case bool:
		if r {
			return Allowed(""), nil
		}
		return Denied(""), nil
	case map[string]any:
		return fromMap(r)
	}
	return PolicyResult{}, &PolicyError{Kind: KindShape, Err: fmt.Errorf("unrecognized result %T", v)}
}

func fromMap(m map[string]any) (PolicyResult, error) {
	out := Allowed("")
	if v, ok := m["allow"]; ok {
		b, ok := v.(bool)
		if !ok {
			return PolicyResult{}, &PolicyError{Kind: KindShape, Err: fmt.Errorf("allow is %T", v)}
		}
		out.Allow = b
	}
	if v, ok := m["scale"]; ok {
		f, ok := toFloat(v)
		if !ok {
			return PolicyResult{}, &PolicyError{Kind: KindShape, Err: fmt.Errorf("scale is %T", v)}
		}
		out.Scale = f
	}
	if v, ok := m["force_flatten"]; ok {
		b, ok := v.(bool)
		if !ok {
			return PolicyResult{}, &PolicyError{Kind: KindShape, Err: fmt.Errorf("force_flatten is %T", v)}
		}
		out.ForceFlatten = b
	}
	if v, ok := m["reason"]; ok && v != nil {
		out.Reason = fmt.Sprint(v)
	}
	if v, ok := m["max_qty_hint"]; ok && v != nil {
		f, ok := toFloat(v)
		if !ok {
			return PolicyResult{}, &PolicyError{Kind: KindShape, Err: fmt.Errorf("max_qty_hint is %T", v)}
		}
		out = out.WithHint(int64(f))
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// FuncPolicy adapts loosely shaped checks to Policy. Check may return any
// shape Normalize understands; Size may be nil.
type FuncPolicy struct {
	ID    string
	Check func(ctx Context) (any, error)
	Size  func(ctx Context) (int64, bool, error)
}

func (f FuncPolicy) Name() string { return f.ID }

func (f FuncPolicy) CheckEntry(ctx Context) (PolicyResult, error) {
	if f.Check == nil {
		return Allowed(""), nil
	}
	v, err := f.Check(ctx)
	if err != nil {
		return PolicyResult{}, err
	}
	return Normalize(v)
}

func (f FuncPolicy) SizeHint(ctx Context) (int64, bool, error) {
	if f.Size == nil {
		return 0, false, nil
	}
	return f.Size(ctx)
}
