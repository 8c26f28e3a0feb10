package models

// FileSource is where a page came from
type FileSource string

const (
	SourceUpload FileSource = "upload"
	SourceCamera FileSource = "camera"
	SourceADB    FileSource = "adb"
)

// Valid reports whether s is a known capture source
func (s FileSource) Valid() bool {
	switch s {
	case SourceUpload, SourceCamera, SourceADB:
		return true
	}
	return false
}

// FileStatus is the lifecycle status of a FileItem
type FileStatus string

const (
	FileStatusPending     FileStatus = "pending"
	FileStatusRasterizing FileStatus = "rasterizing"
	FileStatusProcessing  FileStatus = "processing"
	FileStatusSuccess     FileStatus = "success"
	FileStatusFailed      FileStatus = "failed"
)

// Retryable reports whether a scan picks up an item in this status
func (s FileStatus) Retryable() bool {
	return s == FileStatusPending || s == FileStatusFailed
}

// FileItem is one uploaded or captured homework page.
// URL is the session-scoped locator joining the item to its Solution.
type FileItem struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	MimeType    string     `json:"mimeType"`
	URL         string     `json:"url"`
	Source      FileSource `json:"source"`
	Status      FileStatus `json:"status"`
	Size        int        `json:"size"`
	CreatedAt   int64      `json:"createdAt"`

	Content []byte `json:"-"`
}

// Clone copies the item including its content slice
func (f FileItem) Clone() FileItem {
	if f.Content != nil {
		f.Content = append([]byte(nil), f.Content...)
	}
	return f
}

// WithoutContent copies the item dropping the binary content
func (f FileItem) WithoutContent() FileItem {
	f.Content = nil
	return f
}

// ItemPatch is a partial update of a FileItem. Nil fields are left unchanged.
type ItemPatch struct {
	Status      *FileStatus
	DisplayName *string
}

// StatusPatch builds a patch that only sets the status
func StatusPatch(s FileStatus) ItemPatch {
	return ItemPatch{Status: &s}
}
