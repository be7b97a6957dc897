// Package deferer lets cleanups survive log.Fatal. log.Fatal() is effectively
// fmt.Println() followed by os.Exit(1), and normal defers do not run when os.Exit()
// is called, but some cleanups have to happen anyway, like releasing the fleet
// config lockfile so the next run is not stuck waiting out a stale lock.
package deferer

import (
	"fmt"
	"path/filepath"
	"runtime"

	log "github.com/sirupsen/logrus"
)

// Deferer holds cleanups that run on Run or on any Fatal exit
type Deferer struct {
	fns []func()
	ran bool
}

// NewDeferer returns a Deferer ready to accept cleanups
func NewDeferer() *Deferer {
	return &Deferer{
		fns: make([]func(), 0),
	}
}

// Defer adds a cleanup
func (d *Deferer) Defer(f func()) {
	d.fns = append(d.fns, f)
}

// Run calls each cleanup in reverse order, once. Common usage is to call
// `defer d.Run()` right after creating the Deferer.
func (d *Deferer) Run() {
	if d.ran {
		return
	}

	for i := len(d.fns) - 1; i >= 0; i-- {
		d.fns[i]()
	}
	d.ran = true
}

// Fatal runs the cleanups and then calls log.Fatal, tagged with the caller's
// file and line since the exit point would otherwise be reported as this file.
func (d *Deferer) Fatal(v ...interface{}) {
	d.Run()
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		log.Fatal(v...)
	} else {
		base := filepath.Base(file)
		args := []interface{}{interface{}(fmt.Sprintf("%s:%d: ", base, line))}
		log.Fatal(append(args, v...)...)
	}
}

// FatalWithFields accepts additional logging fields for the fatal log
func (d *Deferer) FatalWithFields(fields log.Fields, v ...interface{}) {
	d.Run()
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		log.WithFields(fields).Fatal(v...)
	} else {
		fields["file"] = filepath.Base(file)
		fields["line"] = line
		log.WithFields(fields).Fatal(v...)
	}
}
