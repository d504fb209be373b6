package favorites

import (
	"net/http"

	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type favoritesStore interface {
	IsFavorite(id string) bool
	Toggle(id string) bool
	Add(id string)
	Remove(id string)
	Snapshot() []string
}

type exerciseCatalog interface {
	Contains(id string) bool
}

type ListResponse struct {
	Favorites []string `json:"favorites"`
	Total     int      `json:"total"`
}

type FavoriteResponse struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

type Handler struct {
	store   favoritesStore
	catalog exerciseCatalog
}

func NewHandler(store favoritesStore, catalog exerciseCatalog) *Handler {
	return &Handler{
		store:   store,
		catalog: catalog,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/favorites", handler.HandleList).Methods("GET").Name("favorites-list")
	router.HandleFunc("/favorites/{id}/toggle", handler.HandleToggle).Methods("POST").Name("favorites-toggle")
	router.HandleFunc("/favorites/{id}", handler.HandleAdd).Methods("PUT").Name("favorites-add")
	router.HandleFunc("/favorites/{id}", handler.HandleRemove).Methods("DELETE").Name("favorites-remove")
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.favorites.list")
	defer span.End()

	ids := handler.store.Snapshot()
	pkg.WriteJSON(w, http.StatusOK, ListResponse{
		Favorites: ids,
		Total:     len(ids),
	})
}

func (handler *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.favorites.toggle")
	defer span.End()

	id, ok := handler.exerciseID(w, r)
	if !ok {
		return
	}

	favorite := handler.store.Toggle(id)
	log.Debugf("favorite toggled: [%s] -> %t", id, favorite)

	pkg.WriteJSON(w, http.StatusOK, FavoriteResponse{
		ID:       id,
		Favorite: favorite,
	})
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.favorites.add")
	defer span.End()

	id, ok := handler.exerciseID(w, r)
	if !ok {
		return
	}

	handler.store.Add(id)
	pkg.WriteJSON(w, http.StatusOK, FavoriteResponse{
		ID:       id,
		Favorite: true,
	})
}

// HandleRemove does not check the catalog, so stale ids can be cleaned up.
func (handler *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.gymstats.favorites.remove")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	handler.store.Remove(id)
	pkg.WriteJSON(w, http.StatusOK, FavoriteResponse{
		ID:       id,
		Favorite: false,
	})
}

func (handler *Handler) exerciseID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return "", false
	}
	if !handler.catalog.Contains(id) {
		http.Error(w, "exercise not found", http.StatusNotFound)
		return "", false
	}
	return id, true
}
