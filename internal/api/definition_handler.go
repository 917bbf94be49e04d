package api

import (
	"net/http"
)

// ListDefinitions возвращает определения процессов узла.
// GET /api/v1/definitions
func (h *Handler) ListDefinitions(w http.ResponseWriter, _ *http.Request) {
	names := h.definitions.MessageNames()

	result := make([]DefinitionResponse, 0, len(names))
	for _, name := range names {
		def, ok := h.definitions.Definition(name)
		if !ok {
			continue
		}
		result = append(result, DefinitionResponse{MessageName: name, Definition: def})
	}

	List(w, result, len(result))
}

// GetDefinition возвращает определение по имени стартового сообщения.
// GET /api/v1/definitions/{name}
func (h *Handler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	def, ok := h.definitions.Definition(name)
	if !ok {
		NotFound(w, "definition not found")
		return
	}

	Success(w, DefinitionResponse{MessageName: name, Definition: def})
}
