package browse

import (
	"encoding/json"
	"net/http"

	"github.com/2beens/gymtracker/internal/gymstats/catalog"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

type ExercisesResponse struct {
	Exercises []catalog.Exercise `json:"exercises"`
	Total     int                `json:"total"`
}

type BatchRequest struct {
	Category string   `json:"category"`
	Search   string   `json:"search"`
	IDs      []string `json:"ids"`
}

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{
		engine: engine,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/categories", handler.HandleCategories).Methods("GET").Name("browse-categories")
	router.HandleFunc("/exercises", handler.HandleList).Methods("GET").Name("browse-exercises")
	router.HandleFunc("/exercises/batch", handler.HandleBatch).Methods("POST").Name("browse-batch")
}

func (handler *Handler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.browse.categories")
	defer span.End()

	pkg.WriteJSON(w, http.StatusOK, CategoriesResponse{
		Categories: Categories(),
	})
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.browse.list")
	defer span.End()

	picker := NewPicker(handler.engine, nil)
	picker.SetCategory(r.URL.Query().Get("category"))
	picker.SetSearch(r.URL.Query().Get("search"))

	results := picker.Results()
	pkg.WriteJSON(w, http.StatusOK, ExercisesResponse{
		Exercises: results,
		Total:     len(results),
	})
}

// HandleBatch resolves a batch selection made in an embedded picker.
// Selected ids not visible under the given category and search are left out.
func (handler *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.browse.batch")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("batch select, unmarshal json params: %s", err)
		http.Error(w, "batch select failed", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, "error, no exercises selected", http.StatusBadRequest)
		return
	}

	picker := NewPicker(handler.engine, nil)
	picker.SetCategory(req.Category)
	picker.SetExternalSearch(&req.Search)
	for _, id := range req.IDs {
		if !picker.IsSelected(id) {
			picker.ToggleSelection(id)
		}
	}

	batch := picker.CommitBatch()
	log.Debugf("batch select: %d requested, %d resolved", len(req.IDs), len(batch))

	if batch == nil {
		batch = []catalog.Exercise{}
	}
	pkg.WriteJSON(w, http.StatusOK, ExercisesResponse{
		Exercises: batch,
		Total:     len(batch),
	})
}
