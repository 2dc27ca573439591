package model

import "time"

// ValidationResult is the outcome of validating a single admin page.
type ValidationResult struct {
	// Page title or identifier
	Page string `json:"page"`
	// Module the page belongs to (e.g. "datasource", "governance")
	Module string `json:"module"`
	// URL the page was loaded from
	URL string `json:"url,omitempty"`
	// Result of loading the page
	PageLoad PageLoad `json:"pageLoad"`
	// Results of the CRUD operations that were configured for the page
	Operations Operations `json:"operations"`
	// Errors collected while the page was open
	Errors []string `json:"errors,omitempty"`
	// Time the validation finished
	Timestamp time.Time `json:"timestamp"`
}

// PageLoad describes loading a page.
type PageLoad struct {
	Success    bool   `json:"success"`
	LoadTimeMs int64  `json:"loadTimeMs"`
	Error      string `json:"error,omitempty"`
}

// Operations holds the per-operation results. A nil field means the
// operation was not configured for the page.
type Operations struct {
	Create *OperationResult `json:"create,omitempty"`
	Read   *OperationResult `json:"read,omitempty"`
	Update *OperationResult `json:"update,omitempty"`
	Delete *OperationResult `json:"delete,omitempty"`
}

// OperationResult is the outcome of one CRUD operation.
type OperationResult struct {
	Success    bool   `json:"success"`
	DurationMs int64  `json:"durationMs,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Configured returns the configured operations in CRUD order.
func (o Operations) Configured() []NamedOperation {
	var ops []NamedOperation
	for _, op := range []NamedOperation{
		{Name: "create", Result: o.Create},
		{Name: "read", Result: o.Read},
		{Name: "update", Result: o.Update},
		{Name: "delete", Result: o.Delete},
	} {
		if op.Result != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

// NamedOperation pairs an operation name with its result.
type NamedOperation struct {
	Name   string
	Result *OperationResult
}
