package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/docbase-tech/docbase/core"
	"github.com/docbase-tech/docbase/core/access"
	"github.com/docbase-tech/docbase/core/logger"
	"github.com/docbase-tech/docbase/store"
)

// generateDocumentID returns a fresh document id, 24 hex characters.
func generateDocumentID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// collectionForRequest resolves the {collection} path variable and checks
// that the collection belongs to the key's project.
func (b *Backend) collectionForRequest(w http.ResponseWriter, r *http.Request) (int64, bool) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	collectionID, ok := pathID(r, "collection")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid collection id")
		return 0, false
	}
	inProject, err := b.store.CollectionInProject(r.Context(), collectionID, key.ProjectID)
	if err != nil {
		internalError(w, r, 4701, err)
		return 0, false
	}
	if !inProject {
		sendError(w, http.StatusNotFound, "collection not found or access denied")
		return 0, false
	}
	return collectionID, true
}

// expanded returns the document's data with references resolved. Data that
// does not parse is passed through untouched.
func (b *Backend) expanded(r *http.Request, data json.RawMessage) interface{} {
	var value interface{}
	if err := json.Unmarshal(data, &value); err != nil {
		logger.FromContext(r.Context()).WithError(err).Warnln("stored document data does not parse")
		return data
	}
	return b.expander.Expand(r.Context(), value, 0)
}

type documentResponse struct {
	ID           int64       `json:"id"`
	CollectionID int64       `json:"collection_id"`
	DocumentID   string      `json:"document_id"`
	Data         interface{} `json:"data"`
	CreatedAt    interface{} `json:"created_at"`
	UpdatedAt    interface{} `json:"updated_at"`
}

func (b *Backend) documentResponse(r *http.Request, d store.Document) documentResponse {
	return documentResponse{
		ID:           d.ID,
		CollectionID: d.CollectionID,
		DocumentID:   d.DocumentID,
		Data:         b.expanded(r, d.Data),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (b *Backend) documentsHandler(w http.ResponseWriter, r *http.Request) {
	collectionID, ok := b.collectionForRequest(w, r)
	if !ok {
		return
	}
	page, limit := pageParams(r, 0)

	documents, total, err := b.store.Documents(r.Context(), collectionID, page, limit)
	if err != nil {
		internalError(w, r, 4702, err)
		return
	}

	// each page element is expanded independently
	response := make([]documentResponse, 0, len(documents))
	for _, d := range documents {
		response = append(response, b.documentResponse(r, d))
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"documents":  response,
		"pagination": paginate(total, page, limit),
	})
}

func (b *Backend) documentHandler(w http.ResponseWriter, r *http.Request) {
	collectionID, ok := b.collectionForRequest(w, r)
	if !ok {
		return
	}

	document, found, err := b.store.Document(r.Context(), collectionID, muxVar(r, "document"))
	if err != nil {
		internalError(w, r, 4703, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "document not found")
		return
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"document": b.documentResponse(r, document),
	})
}

func (b *Backend) createDocumentHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	if !key.HasWrite() {
		sendError(w, http.StatusForbidden, "API key does not have write permission")
		return
	}
	collectionID, ok := b.collectionForRequest(w, r)
	if !ok {
		return
	}

	var body struct {
		DocumentID string          `json:"document_id"`
		Data       json.RawMessage `json:"data"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	var data map[string]interface{}
	if body.Data == nil || json.Unmarshal(body.Data, &data) != nil || data == nil {
		sendError(w, http.StatusBadRequest, "document data is required and must be an object")
		return
	}

	documentID := body.DocumentID
	if documentID == "" {
		documentID = generateDocumentID()
	}
	// the data carries its own id so clients can reference it back
	if _, ok := data["id"]; !ok {
		data["id"] = documentID
	}

	exists, err := b.store.DocumentExists(r.Context(), collectionID, documentID)
	if err != nil {
		internalError(w, r, 4704, err)
		return
	}
	if exists {
		sendError(w, http.StatusConflict, "document id already exists in this collection")
		return
	}

	raw, err := json.MarshalWithOption(data, json.DisableHTMLEscape())
	if err != nil {
		internalError(w, r, 4705, err)
		return
	}
	document, err := b.store.CreateDocument(r.Context(), collectionID, documentID, raw)
	if err != nil {
		// a concurrent create can slip past the exists check
		if store.IsUniqueViolation(err) {
			sendError(w, http.StatusConflict, "document id already exists in this collection")
			return
		}
		internalError(w, r, 4706, err)
		return
	}

	b.record(r, &key.UserID, string(core.OperationCreate), "document", documentID, map[string]interface{}{"collection_id": collectionID})
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "document created successfully",
		"document": documentResponse{
			ID:           document.ID,
			CollectionID: document.CollectionID,
			DocumentID:   document.DocumentID,
			Data:         data,
			CreatedAt:    document.CreatedAt,
			UpdatedAt:    document.UpdatedAt,
		},
	})
}

func (b *Backend) updateDocumentHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	if !key.HasWrite() {
		sendError(w, http.StatusForbidden, "API key does not have write permission")
		return
	}
	collectionID, ok := b.collectionForRequest(w, r)
	if !ok {
		return
	}
	documentID := muxVar(r, "document")

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	var data map[string]interface{}
	if body.Data == nil || json.Unmarshal(body.Data, &data) != nil || data == nil {
		sendError(w, http.StatusBadRequest, "document data is required and must be an object")
		return
	}

	raw, err := json.MarshalWithOption(data, json.DisableHTMLEscape())
	if err != nil {
		internalError(w, r, 4707, err)
		return
	}
	updated, err := b.store.UpdateDocument(r.Context(), collectionID, documentID, raw)
	if err != nil {
		internalError(w, r, 4708, err)
		return
	}
	if !updated {
		sendError(w, http.StatusNotFound, "document not found")
		return
	}

	b.record(r, &key.UserID, string(core.OperationUpdate), "document", documentID, map[string]interface{}{"collection_id": collectionID})
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "document updated successfully",
		"document": map[string]interface{}{
			"collection_id": collectionID,
			"document_id":   documentID,
			"data":          data,
		},
	})
}

func (b *Backend) deleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	if !key.HasWrite() {
		sendError(w, http.StatusForbidden, "API key does not have write permission")
		return
	}
	collectionID, ok := b.collectionForRequest(w, r)
	if !ok {
		return
	}
	documentID := muxVar(r, "document")

	deleted, err := b.store.DeleteDocument(r.Context(), collectionID, documentID)
	if err != nil {
		internalError(w, r, 4709, err)
		return
	}
	if !deleted {
		sendError(w, http.StatusNotFound, "document not found")
		return
	}

	b.record(r, &key.UserID, string(core.OperationDelete), "document", documentID, map[string]interface{}{"collection_id": collectionID})
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "document deleted successfully",
	})
}
