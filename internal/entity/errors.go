package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedSource is returned when a URL matches no registered source.
	ErrUnsupportedSource = errors.New("unsupported news source")
	// ErrStructureMismatch is returned when the expected markup is not present.
	ErrStructureMismatch = errors.New("page structure does not match selectors")
	// ErrNoMarkup is returned when a page failed before any markup was captured.
	ErrNoMarkup = errors.New("no markup captured")
	// ErrOracleOutput is returned when the oracle response cannot be parsed.
	ErrOracleOutput = errors.New("malformed oracle output")
	// ErrOracleUnavailable is returned when no oracle is configured.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrDuplicateArticle is returned when an article with the same URL exists.
	ErrDuplicateArticle = errors.New("article with this url already exists")
	// ErrArticleNotFound is returned when a lookup finds no article.
	ErrArticleNotFound = errors.New("article not found")
	// ErrMalformedJob is returned for a queue message that does not decode to a job.
	ErrMalformedJob = errors.New("malformed job message")
)

// Stage names the extraction step that produced a failure.
type Stage string

const (
	StageFetch       Stage = "fetch"
	StageStructural  Stage = "structural"
	StageAI          Stage = "ai"
	StageReadability Stage = "readability"
)

// ExtractionError is the terminal failure of a source extractor.
type ExtractionError struct {
	Source string
	URL    string
	Stage  Stage
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction of %s failed at %s stage: %v", e.Source, e.URL, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
