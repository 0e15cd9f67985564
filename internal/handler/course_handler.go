package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/techwave/storefront/internal/model"
)

// CourseHandler はコースカタログのHTTPハンドラー。
type CourseHandler struct {
	catalog CatalogInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(catalog CatalogInterface) *CourseHandler {
	return &CourseHandler{catalog: catalog}
}

// ListCourses は全コースを返す。
// GET /api/courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"courses": h.catalog.List(),
	})
}

// GetCourse は指定IDのコースを返す。
// GET /api/courses/{id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("コースIDが不正です"))
		return
	}

	course, ok := h.catalog.FindByID(courseID)
	if !ok {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewCourseNotFoundError(courseID))
		return
	}

	writeJSON(w, http.StatusOK, course)
}
