package sealer

import (
	"errors"

	"github.com/nguyengg/sealer/errs"
)

// ErrBusy is returned when a job is started while another one is still running on the same Engine.
var ErrBusy = errors.New("another archive job is already running")

// Message returns the human-readable message to show for an error returned by Engine.
//
// The message never contains the password; it may contain file paths.
func Message(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrBusy) {
		return "Another operation is in progress. Please wait for it to finish."
	}

	switch errs.KindOf(err) {
	case errs.InvalidPassword:
		return "Invalid password. Please check the password and try again."
	case errs.Cancelled:
		return "Operation was cancelled."
	case errs.PathTraversal:
		return "The archive contains unsafe paths and was not extracted: " + err.Error()
	case errs.ResourceLimit:
		return "The archive is too large to extract safely: " + err.Error()
	case errs.Format:
		return "The file is not a supported archive or is corrupted: " + err.Error()
	case errs.Traversal:
		return "Could not read the selected files: " + err.Error()
	default:
		return "Operation failed: " + err.Error()
	}
}
