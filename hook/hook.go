// Package hook runs a unit of work with try/catch/finally semantics and turns
// panics into errors.
package hook

import "fmt"

// Interface is a unit of work with cleanup.
type Interface interface {
	Try() error
	Catch(err error) error
	Finally()
}

// Call runs hook.Try, routes its error through hook.Catch, and always runs
// hook.Finally. A panic in Try is recovered and returned as an error.
func Call(hook Interface) (err error) {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}

	defer hook.Finally()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	tryErr := hook.Try()
	if tryErr != nil {
		err = hook.Catch(tryErr)
		return err
	}

	return nil
}

// PanicError carries the value recovered from a panicking hook.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic occurred during hook execution: %v", e.Value)
}

// Funcs adapts plain functions to Interface. Nil fields are no-ops.
type Funcs struct {
	TryFunc     func() error
	CatchFunc   func(error) error
	FinallyFunc func()
}

func (f Funcs) Try() error {
	if f.TryFunc == nil {
		return nil
	}
	return f.TryFunc()
}

func (f Funcs) Catch(err error) error {
	if f.CatchFunc == nil {
		return err
	}
	return f.CatchFunc(err)
}

func (f Funcs) Finally() {
	if f.FinallyFunc != nil {
		f.FinallyFunc()
	}
}
