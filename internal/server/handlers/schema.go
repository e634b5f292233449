package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/maruel/calnotes/internal/server/dto"
)

// SchemaHandler publishes the JSON Schema of the POST /api/notes body.
type SchemaHandler struct {
	once   sync.Once
	schema json.RawMessage
	err    error
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler() *SchemaHandler {
	return &SchemaHandler{}
}

// Schema returns the schema, reflected once.
func (h *SchemaHandler) Schema(_ context.Context, _ *dto.SchemaRequest) (*dto.Envelope[json.RawMessage], error) {
	h.once.Do(func() {
		r := &jsonschema.Reflector{
			Anonymous:      true,
			DoNotReference: true,
		}
		s := r.Reflect(&dto.SaveNotesRequest{})
		s.Title = "Save notes request"
		h.schema, h.err = json.Marshal(s)
	})
	if h.err != nil {
		return nil, dto.InternalWithError("Failed to build schema", h.err)
	}
	return &dto.Envelope[json.RawMessage]{Message: "Schema", Data: h.schema}, nil
}
