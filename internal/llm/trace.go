package llm

// Step is one tool invocation inside an agent run. HasQuery is set only
// when the tool input carried a SQL statement, so consumers never have
// to inspect arbitrary attributes.
type Step struct {
	Tool     string
	Query    string
	HasQuery bool
	Output   string
}

// Trace is the ordered record of one agent invocation. It lives for a
// single orchestration call and is never persisted.
type Trace struct {
	FinalText string
	Steps     []Step
}

// FirstSQL returns the statement of the earliest SQL-bearing step. The
// first tool call is the authoritative one when the agent queries more
// than once.
func (t *Trace) FirstSQL() (string, bool) {
	for _, step := range t.Steps {
		if step.HasQuery {
			return step.Query, true
		}
	}
	return "", false
}
