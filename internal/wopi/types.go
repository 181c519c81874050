// Package wopi holds the protocol-level types and the save-as target
// resolution rules for the document editing protocol.
package wopi

// CheckFileInfoResponse is the JSON capability document returned by the
// CheckFileInfo operation. Every permission is surfaced both as a "disable"
// and a "hide" flag, driven by the same underlying attribute, because the
// editing client honors them in different UI places.
type CheckFileInfoResponse struct {
	BaseFileName     string `json:"BaseFileName"`
	Size             int64  `json:"Size"`
	Version          string `json:"Version"`
	OwnerId          string `json:"OwnerId"`
	UserId           string `json:"UserId"`
	UserFriendlyName string `json:"UserFriendlyName"`

	UserCanWrite            bool `json:"UserCanWrite"`
	ReadOnly                bool `json:"ReadOnly"`
	UserCanNotWriteRelative bool `json:"UserCanNotWriteRelative"`

	DisablePrint    bool `json:"DisablePrint"`
	HidePrintOption bool `json:"HidePrintOption"`

	DisableExport    bool `json:"DisableExport"`
	HideExportOption bool `json:"HideExportOption"`

	// Save-to-storage and in-document copy follow the export permission.
	DisableCopy    bool `json:"DisableCopy"`
	HideSaveOption bool `json:"HideSaveOption"`

	WatermarkText string `json:"WatermarkText,omitempty"`

	LastModifiedTime  string `json:"LastModifiedTime"`
	PostMessageOrigin string `json:"PostMessageOrigin,omitempty"`

	// Locks are not supported by this host; concurrency is handled with
	// the optimistic timestamp check in PutFile.
	SupportsLocks   bool `json:"SupportsLocks"`
	SupportsGetLock bool `json:"SupportsGetLock"`
}

// PutFileResponse is the JSON body of a successful PutFile.
type PutFileResponse struct {
	Status           string `json:"status"`
	LastModifiedTime string `json:"LastModifiedTime"`
}

// PutRelativeResponse is the JSON body of a successful PutFileRelative.
type PutRelativeResponse struct {
	Name string `json:"Name"`
	Url  string `json:"Url"`
}

// ConflictResponse is the JSON body of a PutFile rejected by the timestamp
// check. Status code 1010 tells the client the document changed externally.
type ConflictResponse struct {
	LOOLStatusCode int `json:"LOOLStatusCode"`
}

// StatusDocChanged is the machine-readable code for a stale write.
const StatusDocChanged = 1010

// Override selector values.
const (
	OverridePut         = "PUT"
	OverridePutRelative = "PUT_RELATIVE"
	OverrideLock        = "LOCK"
	OverrideUnlock      = "UNLOCK"
	OverrideRefreshLock = "REFRESH_LOCK"
	OverrideGetLock     = "GET_LOCK"
	OverrideDelete      = "DELETE"
	OverrideRenameFile  = "RENAME_FILE"
	OverridePutUserInfo = "PUT_USER_INFO"
	OverrideGetShareURL = "GET_SHARE_URL"
)

// KnownUnsupported reports whether selector names an operation this host
// recognizes but deliberately does not implement. Recognized-but-unsupported
// and unrecognized selectors get the same 501 response; the distinction only
// matters for observability.
func KnownUnsupported(selector string) bool {
	switch selector {
	case OverrideLock, OverrideUnlock, OverrideRefreshLock, OverrideGetLock,
		OverrideDelete, OverrideRenameFile, OverridePutUserInfo, OverrideGetShareURL:
		return true
	}
	return false
}

// Protocol header names.
const (
	HeaderOverride        = "X-WOPI-Override"
	HeaderSuggestedTarget = "X-WOPI-SuggestedTarget"
	HeaderTimestamp       = "X-LOOL-WOPI-Timestamp"
)
