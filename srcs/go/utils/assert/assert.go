// Package assert checks preconditions whose violation is a caller bug.
// A failed assertion panics with the location of the failing check.
package assert

import (
	"fmt"
	"runtime"
)

// Failure is the value a failed assertion panics with.
type Failure struct {
	Name string
	Loc  string
	Msg  string
}

func (f *Failure) Error() string {
	if len(f.Msg) > 0 {
		return fmt.Sprintf("%s failed at %s: %s", f.Name, f.Loc, f.Msg)
	}
	return fmt.Sprintf("%s failed at %s", f.Name, f.Loc)
}

func fail(name, msg string) {
	_, fn, line, _ := runtime.Caller(2)
	panic(&Failure{Name: name, Loc: fmt.Sprintf("%s:%d", fn, line), Msg: msg})
}

func OK(err error) {
	if err != nil {
		fail(`assertOK`, err.Error())
	}
}

func True(ok bool) {
	if !ok {
		fail(`assertTrue`, "")
	}
}

func Truef(ok bool, format string, v ...interface{}) {
	if !ok {
		fail(`assertTrue`, fmt.Sprintf(format, v...))
	}
}
