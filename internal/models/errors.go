package models

import "errors"

var (
	// ErrMalformedInput rejects a whole input file.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNoDataset is returned by analytics requested before any extraction has run.
	ErrNoDataset = errors.New("no dataset available")
	// ErrNoData signals an empty but valid result.
	ErrNoData = errors.New("no data")
	// ErrInvalidScenario rejects an empty or unparsable scenario path.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrInvalidArgument rejects a request parameter outside its accepted range.
	ErrInvalidArgument = errors.New("invalid argument")
)
