// Package milvus stores chunks in a Milvus collection.
package milvus

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/retry"
	"github.com/LetsFonseca/CelestiAI/internal/vectorstore"
)

const (
	fieldID        = "id"
	fieldEmbedding = "embedding"
	fieldText      = "text"
	fieldSource    = "source"
	fieldIndex     = "chunk_index"
)

// DefaultCollection is the Milvus spelling of the shared collection name;
// Milvus names allow only letters, digits and underscores.
const DefaultCollection = "astrology_zodiac"

var outputFields = []string{fieldText, fieldSource, fieldIndex}

// Config holds connection settings.
type Config struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Storage implements domain.VectorStore on Milvus.
type Storage struct {
	client     *milvusclient.Client
	collection string
}

// NewStorage connects to Milvus.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Address == "" {
		return nil, errors.New("milvus address is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	c, err := milvusclient.New(dialCtx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect to milvus: %v", vectorstore.ErrUnavailable, err)
	}
	return &Storage{client: c, collection: cfg.Collection}, nil
}

// EnsureCollection creates, indexes and loads the collection when missing.
func (s *Storage) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return retry.Permanent(errors.New("invalid dimension"))
	}
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return unavailable("check collection", err)
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema(s.collection, dimension))); err != nil {
			return unavailable("create collection", err)
		}
		idx := index.NewIvfFlatIndex(entity.COSINE, 128)
		task, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, fieldEmbedding, idx))
		if err != nil {
			return unavailable("create index", err)
		}
		if err := task.Await(ctx); err != nil {
			return unavailable("wait for index", err)
		}
	} else if err := s.checkDimension(ctx, dimension); err != nil {
		return err
	}
	return s.load(ctx)
}

func (s *Storage) checkDimension(ctx context.Context, dimension int) error {
	coll, err := s.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(s.collection))
	if err != nil {
		return unavailable("describe collection", err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != fieldEmbedding {
			continue
		}
		dim, err := f.GetDim()
		if err == nil && dim != int64(dimension) {
			return retry.Permanent(fmt.Errorf("%w: collection %q has %d, got %d",
				vectorstore.ErrDimensionMismatch, s.collection, dim, dimension))
		}
	}
	return nil
}

func (s *Storage) load(ctx context.Context) error {
	task, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return unavailable("load collection", err)
	}
	if err := task.Await(ctx); err != nil {
		return unavailable("wait for load", err)
	}
	return nil
}

func schema(name string, dimension int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("astrology knowledge chunks").
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimension))).
		WithField(entity.NewField().
			WithName(fieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().
			WithName(fieldSource).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(1024)).
		WithField(entity.NewField().
			WithName(fieldIndex).
			WithDataType(entity.FieldTypeInt64))
}

// columns lays chunks out column by column in schema order.
func columns(chunks []domain.Chunk) ([]column.Column, error) {
	dim := len(chunks[0].Vector)
	ids := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	indexes := make([]int64, len(chunks))
	for i, ch := range chunks {
		if len(ch.Vector) != dim {
			return nil, fmt.Errorf("%w: chunk %d has %d, batch has %d", vectorstore.ErrDimensionMismatch, i, len(ch.Vector), dim)
		}
		ids[i] = ch.ID
		vectors[i] = ch.Vector
		texts[i] = ch.Text
		sources[i] = ch.Source
		indexes[i] = int64(ch.Index)
	}
	return []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnFloatVector(fieldEmbedding, dim, vectors),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldSource, sources),
		column.NewColumnInt64(fieldIndex, indexes),
	}, nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	cols, err := columns(chunks)
	if err != nil {
		return retry.Permanent(err)
	}
	if _, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection, cols...)); err != nil {
		return unavailable("upsert", err)
	}
	task, err := s.client.Flush(ctx, milvusclient.NewFlushOption(s.collection))
	if err != nil {
		return unavailable("flush", err)
	}
	if err := task.Await(ctx); err != nil {
		return unavailable("wait for flush", err)
	}
	return nil
}

// Search returns the nearest chunks. A missing collection yields no results.
func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return nil, unavailable("check collection", err)
	}
	if !exists {
		return nil, nil
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	sets, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		s.collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, unavailable("search", err)
	}
	if len(sets) == 0 {
		return nil, nil
	}
	return toResults(sets[0]), nil
}

func toResults(rs milvusclient.ResultSet) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		var ch domain.Chunk
		if ids, ok := rs.IDs.(*column.ColumnVarChar); ok {
			ch.ID = ids.Data()[i]
		}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				switch col.Name() {
				case fieldText:
					ch.Text = col.Data()[i]
				case fieldSource:
					ch.Source = col.Data()[i]
				}
			case *column.ColumnInt64:
				if col.Name() == fieldIndex {
					ch.Index = int(col.Data()[i])
				}
			}
		}
		out = append(out, domain.SearchResult{Chunk: ch, Score: rs.Scores[i]})
	}
	return out
}

func (s *Storage) Count(ctx context.Context) (int64, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return 0, unavailable("check collection", err)
	}
	if !exists {
		return 0, nil
	}
	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(s.collection))
	if err != nil {
		return 0, unavailable("collection stats", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}

func (s *Storage) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: milvus %s: %v", vectorstore.ErrUnavailable, op, err)
}
