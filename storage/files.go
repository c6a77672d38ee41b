// Package storage turns raw file blobs into stored-file descriptors: it
// sanitizes display names into storage-safe path components, classifies the
// file from its MIME type and uploads through the blob gateway.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// Buckets used by the portal.
const (
	BucketProjectFiles = "project-files"
	BucketContracts    = "contracts"
)

// Kind classifies a stored file from its declared MIME type.
type Kind string

const (
	KindPhoto    Kind = "photo"
	KindContract Kind = "contract"
	KindReport   Kind = "report"
)

// Classify maps a MIME type onto a file kind: image/* is a photo,
// application/pdf a contract, everything else a report.
func Classify(contentType string) Kind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return KindPhoto
	case contentType == "application/pdf":
		return KindContract
	default:
		return KindReport
	}
}

// FileDescriptor describes a stored blob. It is embedded by value in its
// owning entity and has no lifecycle of its own. ID is the storage path and
// doubles as the deletion key.
type FileDescriptor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	Type       Kind   `json:"type"`
	UploadedAt string `json:"uploadedAt"`
}

// Validate reports whether the descriptor carries the fields every stored
// file must have.
func (f FileDescriptor) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("storage: file descriptor missing id")
	}
	if f.Name == "" {
		return fmt.Errorf("storage: file descriptor missing name")
	}
	switch f.Type {
	case KindPhoto, KindContract, KindReport:
	default:
		return fmt.Errorf("storage: invalid file type %q", f.Type)
	}
	return nil
}

// ProjectPath builds the storage path for a file attached to a new project.
func ProjectPath(now time.Time, name string) string {
	return fmt.Sprintf("projects/%d-%s", now.UnixMilli(), SanitizeFilename(name))
}

// ProjectFilePath builds the storage path for a file added to an existing
// project.
func ProjectFilePath(now time.Time, projectID, name string) string {
	return fmt.Sprintf("projects/%s/%d-%s", projectID, now.UnixMilli(), SanitizeFilename(name))
}

// ContractPath builds the storage path for a client contract.
func ContractPath(clientID, name string) string {
	return fmt.Sprintf("contracts/%s/%s", clientID, SanitizeFilename(name))
}

// AssistancePath builds the storage path for an assistance-request photo.
func AssistancePath(now time.Time, clientID, name string) string {
	return fmt.Sprintf("assistance/%s/%d-%s", clientID, now.UnixMilli(), SanitizeFilename(name))
}
