package history

import (
	"encoding/json"
	"net/http"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type historyStore interface {
	Get(id string) (PersonalRecord, bool)
	All() map[string]PersonalRecord
	CheckIsPR(id, weight, reps string) bool
	RecordSet(id, weight, reps string) (PersonalRecord, bool)
}

type exerciseCatalog interface {
	Contains(id string) bool
}

type RecordSetRequest struct {
	Weight string `json:"weight"`
	Reps   string `json:"reps"`
}

type RecordSetResponse struct {
	IsPR   bool           `json:"isPR"`
	Record PersonalRecord `json:"record"`
}

type CheckPRResponse struct {
	IsPR bool `json:"isPR"`
}

type Handler struct {
	store   historyStore
	catalog exerciseCatalog
}

func NewHandler(store historyStore, catalog exerciseCatalog) *Handler {
	return &Handler{
		store:   store,
		catalog: catalog,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/history", handler.HandleAll).Methods("GET").Name("history-all")
	router.HandleFunc("/history/{id}", handler.HandleGet).Methods("GET").Name("history-get")
	router.HandleFunc("/history/{id}", handler.HandleRecordSet).Methods("POST").Name("history-record-set")
	router.HandleFunc("/history/{id}/pr", handler.HandleCheckPR).Methods("GET").Name("history-check-pr")
}

func (handler *Handler) HandleAll(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.history.all")
	defer span.End()

	pkg.WriteJSON(w, http.StatusOK, handler.store.All())
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.history.get")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	rec, ok := handler.store.Get(id)
	if !ok {
		http.Error(w, "no history for exercise", http.StatusNotFound)
		return
	}
	pkg.WriteJSON(w, http.StatusOK, rec)
}

func (handler *Handler) HandleRecordSet(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.history.record_set")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}
	if !handler.catalog.Contains(id) {
		http.Error(w, "exercise not found", http.StatusNotFound)
		return
	}

	var req RecordSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("record set, unmarshal json params: %s", err)
		http.Error(w, "record set failed", http.StatusBadRequest)
		return
	}

	rec, isPR := handler.store.RecordSet(id, req.Weight, req.Reps)
	log.Debugf("set recorded: [%s] %s x %s, pr: %t", id, req.Weight, req.Reps, isPR)

	pkg.WriteJSON(w, http.StatusOK, RecordSetResponse{
		IsPR:   isPR,
		Record: rec,
	})
}

func (handler *Handler) HandleCheckPR(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.history.check_pr")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}
	if !handler.catalog.Contains(id) {
		http.Error(w, "exercise not found", http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	pkg.WriteJSON(w, http.StatusOK, CheckPRResponse{
		IsPR: handler.store.CheckIsPR(id, query.Get("weight"), query.Get("reps")),
	})
}
