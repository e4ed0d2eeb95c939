package observer

import (
	"context"
	"time"

	fathom "github.com/fathomlabs/fathom"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedStore wraps a fathom.VectorStore to emit spans and metrics for
// document writes and vector searches.
type ObservedStore struct {
	inner fathom.VectorStore
	inst  *Instruments
}

// WrapStore returns an instrumented vector store.
func WrapStore(inner fathom.VectorStore, inst *Instruments) *ObservedStore {
	return &ObservedStore{inner: inner, inst: inst}
}

var _ fathom.VectorStore = (*ObservedStore)(nil)

func (o *ObservedStore) Init(ctx context.Context) error { return o.inner.Init(ctx) }
func (o *ObservedStore) Close() error                   { return o.inner.Close() }

func (o *ObservedStore) UpsertDocument(ctx context.Context, documentID string, chunks []fathom.Chunk) error {
	ctx, span := o.inst.Tracer.Start(ctx, "store.upsert_document", trace.WithAttributes(
		AttrDocumentID.String(documentID),
		AttrChunkCount.Int(len(chunks)),
	))
	defer span.End()

	err := o.inner.UpsertDocument(ctx, documentID, chunks)
	o.count(ctx, span, "upsert_document", err)
	if err == nil {
		o.inst.ChunksStored.Add(ctx, int64(len(chunks)))
	}
	return err
}

func (o *ObservedStore) DeleteDocument(ctx context.Context, documentID string) error {
	ctx, span := o.inst.Tracer.Start(ctx, "store.delete_document", trace.WithAttributes(
		AttrDocumentID.String(documentID),
	))
	defer span.End()

	err := o.inner.DeleteDocument(ctx, documentID)
	o.count(ctx, span, "delete_document", err)
	return err
}

func (o *ObservedStore) Search(ctx context.Context, vector []float32, filter fathom.SearchFilter, k int) ([]fathom.ScoredChunk, error) {
	modalities := make([]string, len(filter.Modalities))
	for i, m := range filter.Modalities {
		modalities[i] = string(m)
	}
	ctx, span := o.inst.Tracer.Start(ctx, "store.search", trace.WithAttributes(
		AttrSearchK.Int(k),
		AttrSearchKind.String(string(filter.TableKind)),
		AttrModalities.StringSlice(modalities),
	))
	defer span.End()
	start := time.Now()

	results, err := o.inner.Search(ctx, vector, filter, k)

	o.inst.SearchDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	span.SetAttributes(AttrSearchResults.Int(len(results)))
	o.count(ctx, span, "search", err)
	return results, err
}

func (o *ObservedStore) GetChunksByIDs(ctx context.Context, ids []string) ([]fathom.Chunk, error) {
	return o.inner.GetChunksByIDs(ctx, ids)
}

func (o *ObservedStore) count(ctx context.Context, span trace.Span, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	o.inst.StoreOps.Add(ctx, 1, metric.WithAttributes(
		AttrStoreOp.String(op),
		attribute.String("status", status),
	))
}
