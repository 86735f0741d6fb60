package archiver

import "fmt"

// RetrievalError reports a transport or HTTP-level failure during data
// retrieval, including an unparseable response body. It is never retried.
type RetrievalError struct {
	URL    string
	Status int
	Err    error
}

func (e *RetrievalError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("retrieval %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("retrieval %s: %v", e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// InvalidPVError reports that the server explicitly rejected a PV name,
// either with a 404 or with an empty dataset for a PV it does not archive.
type InvalidPVError struct {
	PV string
}

func (e *InvalidPVError) Error() string {
	return fmt.Sprintf("pv %q is unknown to the archiver", e.PV)
}

// ManagementError reports a management operation the server (or local
// configuration) refused for a given PV.
type ManagementError struct {
	PV     string
	Op     string
	Detail string
	Err    error
}

func (e *ManagementError) Error() string {
	msg := fmt.Sprintf("mgmt %s", e.Op)
	if e.PV != "" {
		msg += fmt.Sprintf(" pv %q", e.PV)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ManagementError) Unwrap() error { return e.Err }

// statusError carries a non-2xx HTTP status before it is mapped onto the
// typed taxonomy by the calling operation.
type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.url, e.status)
}
