package handler

import (
	"net/http"

	"github.com/nasasaki/LAPIS/pkg/handler/params"
)

func NewRouter(dbctx *DBContext) *http.ServeMux {
	mux := http.NewServeMux()

	// Error route
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	mux.HandleFunc("GET /api/v1/health", HealthCheck)
	mux.HandleFunc("GET /api/v1/info", dbctx.Info)

	// Sample routes
	mux.HandleFunc("GET /api/v1/sample/aggregated", dbctx.Aggregated)
	mux.HandleFunc("GET /api/v1/sample/details", dbctx.Details)
	mux.HandleFunc("GET /api/v1/sample/strain-names", dbctx.Strains)
	mux.HandleFunc("GET /api/v1/sample/gisaid-epi-isl", dbctx.GisaidEpiIsls)
	mux.HandleFunc("GET /api/v1/sample/ids", dbctx.SampleIDs)
	mux.HandleFunc("GET /api/v1/sample/nuc-mutations", dbctx.Mutations(params.SequenceNuc))
	mux.HandleFunc("GET /api/v1/sample/aa-mutations", dbctx.Mutations(params.SequenceAA))
	mux.HandleFunc("GET /api/v1/sample/nuc-insertions", dbctx.Insertions(params.SequenceNuc))
	mux.HandleFunc("GET /api/v1/sample/aa-insertions", dbctx.Insertions(params.SequenceAA))
	mux.HandleFunc("GET /api/v1/sample/insertion-samples", dbctx.InsertionSamples)
	mux.HandleFunc("GET /api/v1/sample/contributors", dbctx.Contributors)

	mux.HandleFunc("GET /api/v1/pango-lineage-aliases", dbctx.PangoLineageAliases)

	return mux
}
