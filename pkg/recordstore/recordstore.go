// Package recordstore is the durable table of homework page records keyed
// by item id.
package recordstore

import (
	"context"
	"errors"

	"github.com/yangshenhuai/skid-homework/internal/models"
)

var ErrNotFound = errors.New("record not found")

// Record is the denormalized durable copy of a FileItem and its Solution
type Record struct {
	ID        string            `json:"id"`
	Blob      []byte            `json:"blob,omitempty"`
	BlobKey   string            `json:"blobKey,omitempty"`
	FileName  string            `json:"fileName"`
	MimeType  string            `json:"mimeType"`
	Source    models.FileSource `json:"source"`
	Status    models.FileStatus `json:"status"`
	CreatedAt int64             `json:"createdAt"`
	Solution  *models.Solution  `json:"solution,omitempty"`
}

// Patch is a partial record update. Nil fields are left unchanged;
// ClearSolution removes the embedded solution.
type Patch struct {
	Blob          []byte
	BlobKey       *string
	FileName      *string
	MimeType      *string
	Status        *models.FileStatus
	Solution      *models.Solution
	ClearSolution bool
}

// Apply merges the patch into r
func (p Patch) Apply(r *Record) {
	if p.Blob != nil {
		r.Blob = p.Blob
	}
	if p.BlobKey != nil {
		r.BlobKey = *p.BlobKey
	}
	if p.FileName != nil {
		r.FileName = *p.FileName
	}
	if p.MimeType != nil {
		r.MimeType = *p.MimeType
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.ClearSolution {
		r.Solution = nil
	} else if p.Solution != nil {
		s := p.Solution.Durable()
		r.Solution = &s
	}
}

// Store is the durable record table. Each call is atomic for one record or
// for the whole table; there are no multi-record transactions.
type Store interface {
	Create(ctx context.Context, rec Record) error
	BulkCreate(ctx context.Context, recs []Record) error
	// Update returns ErrNotFound for an unknown id
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	// ClearSolutions removes the embedded solution from every record
	ClearSolutions(ctx context.Context) error
	// List returns every record ordered by CreatedAt
	List(ctx context.Context) ([]Record, error)
	Close() error
}
