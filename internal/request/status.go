package request

// Status tracks where a request sits in its lifecycle.
type Status string

const (
	StatusPending           Status = "pending"
	StatusSearching         Status = "searching"
	StatusAwaitingSelection Status = "awaiting_selection"
	StatusSelected          Status = "selected"
	StatusProcessing        Status = "processing"
	StatusDownloading       Status = "downloading"
	StatusAvailable         Status = "available"
	StatusDone              Status = "done"
	StatusDeclined          Status = "declined"
	StatusFailed            Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSearching, StatusAwaitingSelection, StatusSelected,
		StatusProcessing, StatusDownloading, StatusAvailable, StatusDone,
		StatusDeclined, StatusFailed:
		return true
	}
	return false
}

// LocallyManaged reports whether s was set by a local workflow (selection,
// completion, rejection). The reconciliation job must never overwrite a
// locally-managed status with an upstream-derived one; everything else is
// fair game for the derived value.
func (s Status) LocallyManaged() bool {
	switch s {
	case StatusSelected, StatusDownloading, StatusDone, StatusFailed:
		return true
	}
	return false
}

// UpstreamMediaStatus is the media availability value reported by the
// upstream request manager.
type UpstreamMediaStatus int

const (
	MediaUnknown            UpstreamMediaStatus = 1
	MediaPending            UpstreamMediaStatus = 2
	MediaProcessing         UpstreamMediaStatus = 3
	MediaPartiallyAvailable UpstreamMediaStatus = 4
	MediaAvailable          UpstreamMediaStatus = 5
)

// Derive maps the upstream request state to a local status. It is shared by
// the webhook fast path and the reconciliation job and must stay
// deterministic and side-effect-free.
func Derive(declined bool, media UpstreamMediaStatus) Status {
	switch {
	case declined:
		return StatusDeclined
	case media >= MediaPartiallyAvailable:
		return StatusAvailable
	case media == MediaProcessing:
		return StatusProcessing
	default:
		return StatusAwaitingSelection
	}
}
