package models

// OpenRequest is the body of POST /api/documents.
// Backup, when set, names a backup to restore the content from; the session
// stays bound to Path.
type OpenRequest struct {
	Path   string `json:"path"`
	Backup string `json:"backup,omitempty"`
}

// SaveAsRequest is the body of POST /api/documents/{id}/save-as.
type SaveAsRequest struct {
	Path string `json:"path"`
}

// BackupRequest is the body of POST /api/documents/{id}/backup.
// An empty Path lets the server pick a location in its backup directory.
type BackupRequest struct {
	Path string `json:"path,omitempty"`
}
