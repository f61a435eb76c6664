package cycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/nghyane/opsramp-reports/internal/analysis"
	"github.com/nghyane/opsramp-reports/internal/auth"
)

// Mode names the kind of run that produced a Report.
type Mode string

const (
	ModeDaily   Mode = "daily"
	ModeBurst   Mode = "burst"
	ModeCleanup Mode = "cleanup"
)

// Op is the operation an Outcome records.
type Op string

const (
	OpCreate Op = "create"
	OpDelete Op = "delete"
)

// ErrorKind classifies a failed operation.
type ErrorKind string

const (
	KindNone    ErrorKind = ""
	KindAuth    ErrorKind = "auth"
	KindAPI     ErrorKind = "api"
	KindNetwork ErrorKind = "network"
)

// Classify maps an error to its kind. Anything that is neither a token
// failure nor an API answer is treated as a network failure.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return KindAuth
	}
	var apiErr *analysis.APIError
	if errors.As(err, &apiErr) {
		return KindAPI
	}
	return KindNetwork
}

// Outcome is the result of one create or delete attempt.
type Outcome struct {
	Op    Op
	Index int
	Name  string
	ID    string
	// Status is the HTTP status when the server answered, zero otherwise.
	Status int
	Err    error
}

func (o Outcome) Kind() ErrorKind {
	return Classify(o.Err)
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Report collects every outcome of a run.
type Report struct {
	Mode    Mode
	Day     time.Time
	Creates []Outcome
	Deletes []Outcome
	// Interrupted is set when the run was cancelled before it finished.
	Interrupted bool
}

// Created returns the records successfully created, in creation order.
func (r Report) Created() []analysis.Record {
	var out []analysis.Record
	for _, o := range r.Creates {
		if o.OK() {
			out = append(out, analysis.Record{ID: o.ID, Name: o.Name})
		}
	}
	return out
}

// CreatedIDs is Created reduced to the analysis ids.
func (r Report) CreatedIDs() []string {
	var ids []string
	for _, rec := range r.Created() {
		ids = append(ids, rec.ID)
	}
	return ids
}

// Failed counts failed creates and deletes.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Creates {
		if !o.OK() {
			n++
		}
	}
	for _, o := range r.Deletes {
		if !o.OK() {
			n++
		}
	}
	return n
}

func (r Report) deleted() int {
	n := 0
	for _, o := range r.Deletes {
		if o.OK() {
			n++
		}
	}
	return n
}

func (r Report) Summary() string {
	s := fmt.Sprintf("mode=%s created=%d/%d deleted=%d/%d failed=%d",
		r.Mode, len(r.Created()), len(r.Creates), r.deleted(), len(r.Deletes), r.Failed())
	if r.Interrupted {
		s += " interrupted=true"
	}
	return s
}

func statusOf(err error) int {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return authErr.Status
	}
	var apiErr *analysis.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func bodyOf(err error) string {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		return authErr.Body
	}
	var apiErr *analysis.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}
