package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yangshenhuai/skid-homework/config"
	"github.com/yangshenhuai/skid-homework/internal/models"
)

// Firestore keeps one document per record. Documents are capped at 1 MiB,
// so page content is normally offloaded with WithBlobs.
type Firestore struct {
	client     *firestore.Client
	collection string
}

type firestoreDoc struct {
	Blob      []byte `firestore:"blob,omitempty"`
	BlobKey   string `firestore:"blobKey,omitempty"`
	FileName  string `firestore:"fileName"`
	MimeType  string `firestore:"mimeType"`
	Source    string `firestore:"source"`
	Status    string `firestore:"status"`
	CreatedAt int64  `firestore:"createdAt"`
	// JSON-encoded models.Solution, empty when absent
	Solution string `firestore:"solution,omitempty"`
}

func NewFirestore(client *firestore.Client, collection string) *Firestore {
	if collection == "" {
		collection = "homeworks"
	}
	return &Firestore{client: client, collection: collection}
}

// DialFirestore creates a client for the configured project
func DialFirestore(ctx context.Context, cfg config.FirestoreConfig) (*Firestore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return NewFirestore(client, cfg.Collection), nil
}

func toDoc(rec Record) (firestoreDoc, error) {
	doc := firestoreDoc{
		Blob:      rec.Blob,
		BlobKey:   rec.BlobKey,
		FileName:  rec.FileName,
		MimeType:  rec.MimeType,
		Source:    string(rec.Source),
		Status:    string(rec.Status),
		CreatedAt: rec.CreatedAt,
	}
	if rec.Solution != nil {
		data, err := json.Marshal(rec.Solution.Durable())
		if err != nil {
			return doc, err
		}
		doc.Solution = string(data)
	}
	return doc, nil
}

func fromDoc(id string, doc firestoreDoc) (Record, error) {
	rec := Record{
		ID:        id,
		Blob:      doc.Blob,
		BlobKey:   doc.BlobKey,
		FileName:  doc.FileName,
		MimeType:  doc.MimeType,
		Source:    models.FileSource(doc.Source),
		Status:    models.FileStatus(doc.Status),
		CreatedAt: doc.CreatedAt,
	}
	if doc.Solution != "" {
		var s models.Solution
		if err := json.Unmarshal([]byte(doc.Solution), &s); err != nil {
			return rec, err
		}
		rec.Solution = &s
	}
	return rec, nil
}

func (f *Firestore) coll() *firestore.CollectionRef {
	return f.client.Collection(f.collection)
}

func (f *Firestore) Create(ctx context.Context, rec Record) error {
	doc, err := toDoc(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	if _, err := f.coll().Doc(rec.ID).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to create record %s: %w", rec.ID, err)
	}
	return nil
}

func (f *Firestore) BulkCreate(ctx context.Context, recs []Record) error {
	for _, rec := range recs {
		if err := f.Create(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *Firestore) Update(ctx context.Context, id string, patch Patch) error {
	var updates []firestore.Update
	if patch.Blob != nil {
		updates = append(updates, firestore.Update{Path: "blob", Value: patch.Blob})
	}
	if patch.BlobKey != nil {
		updates = append(updates, firestore.Update{Path: "blobKey", Value: *patch.BlobKey})
	}
	if patch.FileName != nil {
		updates = append(updates, firestore.Update{Path: "fileName", Value: *patch.FileName})
	}
	if patch.MimeType != nil {
		updates = append(updates, firestore.Update{Path: "mimeType", Value: *patch.MimeType})
	}
	if patch.Status != nil {
		updates = append(updates, firestore.Update{Path: "status", Value: string(*patch.Status)})
	}
	if patch.ClearSolution {
		updates = append(updates, firestore.Update{Path: "solution", Value: firestore.Delete})
	} else if patch.Solution != nil {
		data, err := json.Marshal(patch.Solution.Durable())
		if err != nil {
			return fmt.Errorf("failed to encode solution for %s: %w", id, err)
		}
		updates = append(updates, firestore.Update{Path: "solution", Value: string(data)})
	}
	if len(updates) == 0 {
		return nil
	}

	_, err := f.coll().Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, id string) error {
	if _, err := f.coll().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

func (f *Firestore) each(ctx context.Context, fn func(*firestore.DocumentSnapshot) error) error {
	it := f.coll().Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to iterate records: %w", err)
		}
		if err := fn(snap); err != nil {
			return err
		}
	}
}

func (f *Firestore) Clear(ctx context.Context) error {
	return f.each(ctx, func(snap *firestore.DocumentSnapshot) error {
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("failed to delete record %s: %w", snap.Ref.ID, err)
		}
		return nil
	})
}

func (f *Firestore) ClearSolutions(ctx context.Context) error {
	return f.each(ctx, func(snap *firestore.DocumentSnapshot) error {
		if v, err := snap.DataAt("solution"); err != nil || v == nil {
			return nil
		}
		_, err := snap.Ref.Update(ctx, []firestore.Update{{Path: "solution", Value: firestore.Delete}})
		if err != nil {
			return fmt.Errorf("failed to clear solution of %s: %w", snap.Ref.ID, err)
		}
		return nil
	})
}

func (f *Firestore) List(ctx context.Context) ([]Record, error) {
	snaps, err := f.coll().OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	out := make([]Record, 0, len(snaps))
	for _, snap := range snaps {
		var doc firestoreDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", snap.Ref.ID, err)
		}
		rec, err := fromDoc(snap.Ref.ID, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode solution of %s: %w", snap.Ref.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
