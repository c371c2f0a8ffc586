package v1

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/folahanmi/orgledger/internal/finance"
)

func (s *Server) postCategory(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[postCategoryRequest](r, ctxKeyPostCategory)
	c, err := s.cats.Create(r.Context(), finance.Category{
		OrgID:        req.OrgID,
		Name:         req.Name,
		Type:         categoryTypeFrom(req.Type),
		TrackMembers: req.TrackMembers,
	})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toCategoryResponse(c))
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.cats.List(r.Context(), orgIDFrom(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	toJSON(w, http.StatusOK, out)
}

// deleteCategory removes a user category. System categories are refused.
func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid category id")
		return
	}
	if err := s.cats.Delete(r.Context(), orgIDFrom(r), id); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ensureDefaultCategories seeds any missing system category for the org.
func (s *Server) ensureDefaultCategories(w http.ResponseWriter, r *http.Request) {
	created, err := s.cats.EnsureDefaults(r.Context(), orgIDFrom(r))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(created))
	for _, c := range created {
		out = append(out, toCategoryResponse(c))
	}
	toJSON(w, http.StatusOK, out)
}
