package domain

import (
	"encoding/json"
	"strings"
)

// ValidationError is one violation found in a definition document.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	StepID  string `json:"step_id,omitempty"`
}

// ValidationResult is the outcome of validating a definition document. Publish
// fails atomically whenever Errors is non-empty.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// Summary joins the violation messages into one line for error reporting.
func (r ValidationResult) Summary() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// Validation error codes.
const (
	CodeInvalidDefinition         = "invalid_definition"
	CodeMissingStartStep          = "missing_start_step"
	CodeMultipleStartSteps        = "multiple_start_steps"
	CodeMissingEndStep            = "missing_end_step"
	CodeMissingApprovalStep       = "missing_approval_step"
	CodeInvalidEndStatus          = "invalid_end_status"
	CodeOrphanedStep              = "orphaned_step"
	CodeCycleDetected             = "cycle_detected"
	CodeMissingApprovalTransition = "missing_approval_transition"
	CodeDuplicateStepID           = "duplicate_step_id"
	CodeInvalidTransitionRef      = "invalid_transition_ref"
	CodeInvalidFormField          = "invalid_form_field"
)

// ValidateDefinition checks the structural integrity of a definition
// document. All rules run and all violations are collected; an empty or
// missing step list fails the start/end/approval presence rules.
func ValidateDefinition(raw json.RawMessage) ValidationResult {
	var doc graphDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ValidationResult{Valid: false, Errors: []ValidationError{{
			Code:    CodeInvalidDefinition,
			Message: "definition is not a valid graph document",
		}}}
	}

	var errs []ValidationError
	validateStartStep(doc, &errs)
	validateEndSteps(doc, &errs)
	validateApprovalSteps(doc, &errs)
	validateStepIDsUnique(doc, &errs)
	validateTransitionRefs(doc, &errs)
	validateNoOrphans(doc, &errs)
	validateNoCycles(doc, &errs)
	validateApprovalTransitions(doc, &errs)
	validateFormFields(doc, &errs)

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func validateStartStep(doc graphDoc, errs *[]ValidationError) {
	count := 0
	for _, s := range doc.Steps {
		if s.Type == NodeTypeStart {
			count++
		}
	}
	switch {
	case count == 0:
		*errs = append(*errs, ValidationError{
			Code:    CodeMissingStartStep,
			Message: "a start step is required",
		})
	case count > 1:
		*errs = append(*errs, ValidationError{
			Code:    CodeMultipleStartSteps,
			Message: "only one start step is allowed",
		})
	}
}

func validateEndSteps(doc graphDoc, errs *[]ValidationError) {
	count := 0
	for _, s := range doc.Steps {
		if s.Type != NodeTypeEnd {
			continue
		}
		count++
		if s.Status != EndStatusApproved && s.Status != EndStatusRejected {
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidEndStatus,
				Message: "end step must carry terminal status \"approved\" or \"rejected\"",
				StepID:  s.ID,
			})
		}
	}
	if count == 0 {
		*errs = append(*errs, ValidationError{
			Code:    CodeMissingEndStep,
			Message: "an end step is required",
		})
	}
}

func validateApprovalSteps(doc graphDoc, errs *[]ValidationError) {
	for _, s := range doc.Steps {
		if s.Type == NodeTypeApproval {
			return
		}
	}
	*errs = append(*errs, ValidationError{
		Code:    CodeMissingApprovalStep,
		Message: "an approval step is required",
	})
}

func validateStepIDsUnique(doc graphDoc, errs *[]ValidationError) {
	seen := make(map[string]bool, len(doc.Steps))
	for _, s := range doc.Steps {
		if s.ID == "" {
			continue
		}
		if seen[s.ID] {
			*errs = append(*errs, ValidationError{
				Code:    CodeDuplicateStepID,
				Message: "step id " + quote(s.ID) + " is duplicated",
				StepID:  s.ID,
			})
		}
		seen[s.ID] = true
	}
}

func validateTransitionRefs(doc graphDoc, errs *[]ValidationError) {
	ids := stepIDSet(doc)
	for _, t := range doc.Transitions {
		if t.From != "" && !ids[t.From] {
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidTransitionRef,
				Message: "transition source " + quote(t.From) + " is not a known step",
				StepID:  t.From,
			})
		}
		if t.To != "" && !ids[t.To] {
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidTransitionRef,
				Message: "transition target " + quote(t.To) + " is not a known step",
				StepID:  t.To,
			})
		}
	}
}

// Every step except start must appear in at least one transition.
func validateNoOrphans(doc graphDoc, errs *[]ValidationError) {
	connected := make(map[string]bool, len(doc.Transitions)*2)
	for _, t := range doc.Transitions {
		connected[t.From] = true
		connected[t.To] = true
	}
	for _, s := range doc.Steps {
		if s.ID == "" || s.Type == NodeTypeStart {
			continue
		}
		if !connected[s.ID] {
			*errs = append(*errs, ValidationError{
				Code:    CodeOrphanedStep,
				Message: "step " + quote(s.ID) + " is not connected",
				StepID:  s.ID,
			})
		}
	}
}

// Cycle detection via three-color DFS over the transition graph.
func validateNoCycles(doc graphDoc, errs *[]ValidationError) {
	const (
		white = iota
		gray
		black
	)
	adjacency := make(map[string][]string, len(doc.Steps))
	for _, s := range doc.Steps {
		if s.ID != "" {
			adjacency[s.ID] = nil
		}
	}
	for _, t := range doc.Transitions {
		if t.From != "" && t.To != "" {
			adjacency[t.From] = append(adjacency[t.From], t.To)
		}
	}

	colors := make(map[string]int, len(adjacency))
	hasCycle := false

	var dfs func(node string)
	dfs = func(node string) {
		if hasCycle {
			return
		}
		colors[node] = gray
		for _, next := range adjacency[node] {
			switch colors[next] {
			case gray:
				hasCycle = true
				return
			case white:
				dfs(next)
			}
		}
		colors[node] = black
	}

	for node := range adjacency {
		if colors[node] == white {
			dfs(node)
		}
	}

	if hasCycle {
		*errs = append(*errs, ValidationError{
			Code:    CodeCycleDetected,
			Message: "the workflow graph contains a cycle",
		})
	}
}

// Every approval step needs both an approve and a reject outgoing transition
// so the engine can always resolve a decision.
func validateApprovalTransitions(doc graphDoc, errs *[]ValidationError) {
	for _, s := range doc.Steps {
		if s.Type != NodeTypeApproval || s.ID == "" {
			continue
		}
		triggers := make(map[string]bool)
		for _, t := range doc.Transitions {
			if t.From == s.ID && t.Trigger != "" {
				triggers[t.Trigger] = true
			}
		}
		if !triggers[TriggerApprove] || !triggers[TriggerReject] {
			*errs = append(*errs, ValidationError{
				Code:    CodeMissingApprovalTransition,
				Message: "approval step " + quote(s.ID) + " needs both approve and reject transitions",
				StepID:  s.ID,
			})
		}
	}
}

var validFormFieldTypes = map[string]bool{
	"text":     true,
	"textarea": true,
	"number":   true,
	"select":   true,
	"date":     true,
}

// The form section is optional; when present, fields need unique ids, a known
// type, a label, and select fields need options.
func validateFormFields(doc graphDoc, errs *[]ValidationError) {
	if doc.Form == nil {
		return
	}
	seen := make(map[string]bool, len(doc.Form.Fields))
	for _, f := range doc.Form.Fields {
		if f.ID == "" {
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidFormField,
				Message: "form field needs an id",
			})
			continue
		}
		if seen[f.ID] {
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidFormField,
				Message: "form field id " + quote(f.ID) + " is duplicated",
			})
		}
		seen[f.ID] = true

		switch {
		case f.Type == "":
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidFormField,
				Message: "form field " + quote(f.ID) + " needs a type",
			})
		case !validFormFieldTypes[f.Type]:
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidFormField,
				Message: "form field " + quote(f.ID) + " has invalid type " + quote(f.Type),
			})
		}

		if f.Label == "" {
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidFormField,
				Message: "form field " + quote(f.ID) + " needs a label",
			})
		}

		if f.Type == "select" && len(f.Options) == 0 {
			*errs = append(*errs, ValidationError{
				Code:    CodeInvalidFormField,
				Message: "form field " + quote(f.ID) + " of type select needs options",
			})
		}
	}
}

func stepIDSet(doc graphDoc) map[string]bool {
	ids := make(map[string]bool, len(doc.Steps))
	for _, s := range doc.Steps {
		if s.ID != "" {
			ids[s.ID] = true
		}
	}
	return ids
}

func quote(s string) string { return "\"" + s + "\"" }
