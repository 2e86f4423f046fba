package monitoring

import (
	"io"
	"log"
)

// Logf is the shared ops logger for packages without their own streams,
// such as the conditions provider. It defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetLogWriter points Logf at w with the timestamp format of the package
// log streams. Passing nil mutes it.
func SetLogWriter(w io.Writer) {
	if w == nil {
		SetLogger(nil)
		return
	}
	SetLogger(log.New(w, "", log.LstdFlags|log.Lmicroseconds).Printf)
}
