// Package schedule stores the events on a church's calendar.
//
// Events are the canonical tenant-scoped resource: every read and write
// goes through auth.LoadScoped so an account only ever sees its own
// church's schedule.
package schedule
