package lectern

import "fmt"

// ErrMalformedDocument reports a course document whose header cannot supply
// the mandatory fields. Ingestion of that document is skipped; others continue.
type ErrMalformedDocument struct {
	Source string
	Reason string
}

func (e *ErrMalformedDocument) Error() string {
	return fmt.Sprintf("malformed document %s: %s", e.Source, e.Reason)
}

// ErrOutOfOrderLesson reports a lesson marker whose number does not strictly
// increase relative to the previous one in the same document.
type ErrOutOfOrderLesson struct {
	Source string
	Number int
	Prev   int
}

func (e *ErrOutOfOrderLesson) Error() string {
	return fmt.Sprintf("out-of-order lesson %d after %d in %s", e.Number, e.Prev, e.Source)
}

// ErrCourseNotFound reports that a course reference could not be resolved
// against the catalog. Tools surface it to the generator as a result, not
// as a fatal error.
type ErrCourseNotFound struct {
	Reference string
}

func (e *ErrCourseNotFound) Error() string {
	return fmt.Sprintf("no course matching %q", e.Reference)
}

// ErrLLM reports a failure from the language-model service. Fatal for the
// current query; surfaced to the caller, never retried by the core.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx response from a collaborator API.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
