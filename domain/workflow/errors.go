package workflow

import "errors"

// WorkflowPausable is the sentinel a handler returns when it awaits a
// dependent agent run that is not yet terminal. The workflow job becomes a
// general interrupt (the same __inferable_interrupt wire sentinel
// domain/job uses for tool results) and stays interrupted until the
// status-change dispatcher (domain/statuschange) re-triggers it.
var WorkflowPausable = errors.New("workflow: pausable")

// WorkflowTerminable is the sentinel a handler returns when a dependent
// agent run fails terminally. It propagates as the workflow job's own
// failure and ends the execution.
var WorkflowTerminable = errors.New("workflow: terminable")
