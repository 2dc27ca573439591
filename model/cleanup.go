package model

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// CleanupResult summarizes a cleanup sweep. Success is true iff Failed is zero.
type CleanupResult struct {
	Success bool     `json:"success"`
	Cleaned int      `json:"cleaned"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// NewCleanupResult returns an empty, successful result.
func NewCleanupResult() CleanupResult {
	return CleanupResult{Success: true, Errors: []string{}}
}

// RecordCleaned counts one successfully cleaned item.
func (r *CleanupResult) RecordCleaned() {
	r.Cleaned++
}

// RecordFailure counts one failed item under "<scope>/<id>: <message>".
func (r *CleanupResult) RecordFailure(scope, id string, err error) {
	msg := fmt.Sprintf("%s: %v", scope, err)
	if id != "" {
		msg = fmt.Sprintf("%s/%s: %v", scope, id, err)
	}
	r.Failed++
	r.Errors = append(r.Errors, msg)
	r.Success = false
}

// Add folds another result into r.
func (r *CleanupResult) Add(other CleanupResult) {
	r.Cleaned += other.Cleaned
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
	r.Success = r.Failed == 0
}

// Err returns the collected errors as a single error, or nil when the
// sweep succeeded.
func (r CleanupResult) Err() error {
	if r.Failed == 0 {
		return nil
	}
	var err error
	for _, msg := range r.Errors {
		err = multierr.Append(err, errors.New(msg))
	}
	if err == nil {
		err = fmt.Errorf("%d cleanup failures", r.Failed)
	}
	return err
}
