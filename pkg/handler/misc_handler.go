// Handler for miscellaneous endpoints such as health check

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nasasaki/LAPIS/pkg/handler/types"
)

func HealthCheck(w http.ResponseWriter, r *http.Request) {

	response := types.HealthResponse{
		Health:    "ok",
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)

}

// Info reports what is loaded right now. It never triggers a load.
func (dbctx *DBContext) Info(w http.ResponseWriter, r *http.Request) {
	response := types.InfoResponse{
		State: dbctx.Snapshots.State().String(),
		Genes: []string{},
		Cache: dbctx.Cache.Stats(),
	}
	if snap := dbctx.Snapshots.Current(); snap != nil {
		response.DataVersion = snap.DataVersion
		response.SampleCount = snap.SampleCount
		response.Genes = snap.Genes()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
