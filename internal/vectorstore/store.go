// Package vectorstore holds embedded chunks and answers similarity queries.
//
// An Index lives in memory. Persist writes it to a single bbolt file inside
// the persistence directory and Open loads it back; the database is only
// held open for the duration of either call.
package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bad33ndj3/code-researcher/internal/domain"
	"github.com/bad33ndj3/code-researcher/internal/embedding"
	"go.etcd.io/bbolt"
	"golang.org/x/sync/errgroup"
)

// FileName is the database file inside the persistence directory.
const FileName = "index.db"

var (
	bucketMeta    = []byte("meta")
	bucketRecords = []byte("records")
	keyMeta       = []byte("index")
)

// ErrVersionMismatch is returned when the index was written by another format version.
var ErrVersionMismatch = errors.New("index version mismatch (rebuild the index)")

// ErrCorrupt is returned when the database does not hold a complete index.
var ErrCorrupt = errors.New("index file is incomplete or corrupt")

// Record is one embedded chunk.
type Record struct {
	Chunk  domain.Chunk `json:"chunk"`
	Vector []float32    `json:"vector"`
}

// Index is an in-memory vector index bound to the embedder that built it.
type Index struct {
	dir      string
	embedder embedding.Embedder
	meta     domain.IndexMeta
	records  []Record
}

type options struct {
	workers   int
	batchSize int
}

// Option configures Create.
type Option func(*options)

// WithWorkers bounds how many embedding requests run at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBatchSize sets how many chunks go into one EmbedBatch call.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// Create embeds chunks and returns an index that will persist to dir.
// Vectors are stored in chunk order regardless of which batch finishes first.
// Nothing is written until Persist is called.
func Create(ctx context.Context, chunks []domain.Chunk, e embedding.Embedder, dir string, opts ...Option) (*Index, error) {
	o := options{workers: 2, batchSize: 16}
	for _, opt := range opts {
		opt(&o)
	}

	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for start := 0; start < len(chunks); start += o.batchSize {
		end := min(start+o.batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}
			vecs, err := e.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vecs))
			}
			copy(vectors[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dims := 0
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		if i == 0 {
			dims = len(vectors[i])
		}
		if len(vectors[i]) == 0 || len(vectors[i]) != dims {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, want %d",
				domain.ErrDimensionMismatch, i, len(vectors[i]), dims)
		}
		records[i] = Record{Chunk: c, Vector: vectors[i]}
	}

	return &Index{
		dir:      dir,
		embedder: e,
		meta: domain.IndexMeta{
			Version:    domain.IndexVersion,
			Dimensions: dims,
			NumChunks:  len(records),
			CreatedAt:  time.Now().UTC(),
		},
		records: records,
	}, nil
}

// Meta returns the index metadata.
func (idx *Index) Meta() domain.IndexMeta { return idx.meta }

// Len returns the number of records.
func (idx *Index) Len() int { return len(idx.records) }

// Dir returns the persistence directory.
func (idx *Index) Dir() string { return idx.dir }

// Persist writes the index to dir, replacing any previous index atomically.
func (idx *Index) Persist() error {
	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("create persist dir: %w", err)
	}

	final := filepath.Join(idx.dir, FileName)
	tmp := final + ".tmp"
	_ = os.Remove(tmp) // leftover from an interrupted write

	db, err := bbolt.Open(tmp, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		data, err := json.Marshal(idx.meta)
		if err != nil {
			return err
		}
		if err := meta.Put(keyMeta, data); err != nil {
			return err
		}

		records, err := tx.CreateBucket(bucketRecords)
		if err != nil {
			return err
		}
		for i, rec := range idx.records {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := records.Put(recordKey(i), data); err != nil {
				return err
			}
		}
		return nil
	})
	if closeErr := db.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write index: %w", err)
	}

	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}
	return nil
}

// Open loads the index persisted in dir. Queries are embedded with e,
// which must produce vectors of the stored dimension.
func Open(dir string, e embedding.Embedder) (*Index, error) {
	path := filepath.Join(dir, FileName)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrCorrupt, path)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer db.Close()

	idx := &Index{dir: dir, embedder: e}
	err = db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		records := tx.Bucket(bucketRecords)
		if meta == nil || records == nil {
			return ErrCorrupt
		}

		data := meta.Get(keyMeta)
		if data == nil {
			return ErrCorrupt
		}
		if err := json.Unmarshal(data, &idx.meta); err != nil {
			return fmt.Errorf("parse index meta: %w", err)
		}
		if idx.meta.Version != domain.IndexVersion {
			return ErrVersionMismatch
		}

		idx.records = make([]Record, 0, idx.meta.NumChunks)
		return records.ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("parse record: %w", err)
			}
			idx.records = append(idx.records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	if len(idx.records) != idx.meta.NumChunks {
		return nil, fmt.Errorf("%w: %d records, meta says %d", ErrCorrupt, len(idx.records), idx.meta.NumChunks)
	}
	return idx, nil
}

// recordKey encodes the record position big-endian so bbolt's byte order
// matches insertion order.
func recordKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}
