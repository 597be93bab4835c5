package scanner

import "errors"

var (
	// ErrReportNotFound means the results artifact does not exist on disk.
	ErrReportNotFound = errors.New("scan report not found")

	// ErrMalformedReport means the results artifact could not be parsed as XCCDF.
	ErrMalformedReport = errors.New("malformed scan report")

	// ErrScanFailed means oscap itself failed (bad exit status, missing binary,
	// or timeout). Exit status 2 is not a failure, see Runner.Run.
	ErrScanFailed = errors.New("scan failed")
)
