package antcgi

import "errors"

var (
	// ErrUnexpectedStatus indicates a non-200 HTTP response.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrNotAntminer indicates the host does not expose the stock CGI API.
	ErrNotAntminer = errors.New("host does not expose the Antminer CGI interface")
)
