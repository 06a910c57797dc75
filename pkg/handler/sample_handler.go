package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nasasaki/LAPIS/logger"
	"github.com/nasasaki/LAPIS/pkg/cache"
	"github.com/nasasaki/LAPIS/pkg/handler/params"
	"github.com/nasasaki/LAPIS/pkg/handler/request"
	"github.com/nasasaki/LAPIS/pkg/handler/types"
	"github.com/nasasaki/LAPIS/pkg/memdb"
	"github.com/nasasaki/LAPIS/pkg/model"
	"github.com/nasasaki/LAPIS/pkg/query"
	"go.uber.org/zap"
)

type computeFunc func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error)

// serve parses the request, answers from the cache when it can and
// otherwise computes, wraps and caches the response body. The whole request
// is answered from one snapshot, whose version labels and keys the body.
func (dbctx *DBContext) serve(w http.ResponseWriter, r *http.Request, endpoint string, compute computeFunc) {
	req, err := request.ParseSampleRequest(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	snap, err := dbctx.Snapshots.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	version := snap.DataVersion

	key, err := cache.Key(fmt.Sprintf("%s@%d", endpoint, version), req)
	if err != nil {
		writeError(w, err)
		return
	}
	cacheable := req.OrderAndLimit.OrderBy != params.OrderRandom
	if cacheable {
		if body, ok := dbctx.Cache.Get(key); ok {
			writeBody(w, body)
			return
		}
	}

	data, err := compute(r.Context(), dbctx.Samples.At(snap), req)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(types.Response{
		Info: types.Info{DataVersion: version},
		Data: data,
	}); err != nil {
		writeError(w, err)
		return
	}
	if cacheable {
		dbctx.Cache.Put(key, buf.Bytes())
	}
	writeBody(w, buf.Bytes())
}

func writeBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(types.ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case query.IsMalformed(err),
		model.IsUnsupportedOrdering(err),
		errors.Is(err, model.ErrConflictingFilter),
		errors.Is(err, model.ErrBadParameter),
		errors.Is(err, model.ErrUnknownField),
		errors.Is(err, memdb.ErrUnknownGene):
		return http.StatusBadRequest
	case errors.Is(err, memdb.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type aggregatedRow map[string]any

func (dbctx *DBContext) Aggregated(w http.ResponseWriter, r *http.Request) {
	dbctx.serve(w, r, "aggregated", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
		rows, err := svc.Aggregate(ctx, req.Filter, req.Fields)
		if err != nil {
			return nil, err
		}
		out := make([]aggregatedRow, len(rows))
		for i, row := range rows {
			o := aggregatedRow{"count": row.Count}
			for k, v := range row.Values {
				o[string(k)] = v
			}
			out[i] = o
		}
		return out, nil
	})
}

func (dbctx *DBContext) Details(w http.ResponseWriter, r *http.Request) {
	dbctx.serve(w, r, "details", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
		return svc.Details(ctx, req.Filter, req.OrderAndLimit)
	})
}

func (dbctx *DBContext) Strains(w http.ResponseWriter, r *http.Request) {
	dbctx.serve(w, r, "strains", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
		return svc.Strains(ctx, req.Filter, req.OrderAndLimit)
	})
}

func (dbctx *DBContext) GisaidEpiIsls(w http.ResponseWriter, r *http.Request) {
	dbctx.serve(w, r, "gisaid-epi-isl", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
		return svc.GisaidEpiIsls(ctx, req.Filter, req.OrderAndLimit)
	})
}

func (dbctx *DBContext) SampleIDs(w http.ResponseWriter, r *http.Request) {
	dbctx.serve(w, r, "ids", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
		return svc.FilterIDs(ctx, req.Filter)
	})
}

// Mutations is the handler for one sequence type, e.g. Mutations(params.SequenceAA).
func (dbctx *DBContext) Mutations(st params.SequenceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbctx.serve(w, r, st.String()+"-mutations", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
			return svc.CountMutations(ctx, req.Filter, st, req.MinProportion)
		})
	}
}

func (dbctx *DBContext) Insertions(st params.SequenceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbctx.serve(w, r, st.String()+"-insertions", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
			return svc.CountInsertions(ctx, req.Filter, st)
		})
	}
}

// InsertionSamples lists the ids of matching samples carrying one insertion.
func (dbctx *DBContext) InsertionSamples(w http.ResponseWriter, r *http.Request) {
	dbctx.serve(w, r, "insertion-samples", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
		if req.Insertion == "" {
			return nil, fmt.Errorf("%w: insertion is required", model.ErrBadParameter)
		}
		st := params.SequenceNuc
		if req.SequenceType != "" {
			var err error
			if st, err = params.ParseSequenceType(req.SequenceType); err != nil {
				return nil, fmt.Errorf("%w: %v", model.ErrBadParameter, err)
			}
		}
		return svc.MatchInsertion(ctx, req.Filter, st, req.Insertion)
	})
}

func (dbctx *DBContext) Contributors(w http.ResponseWriter, r *http.Request) {
	dbctx.serve(w, r, "contributors", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
		return svc.Contributors(ctx, req.Filter, req.OrderAndLimit)
	})
}

func (dbctx *DBContext) PangoLineageAliases(w http.ResponseWriter, r *http.Request) {
	dbctx.serve(w, r, "pango-lineage-aliases", func(ctx context.Context, svc *model.SampleService, req request.SampleRequest) (any, error) {
		return svc.Aliases(ctx)
	})
}
