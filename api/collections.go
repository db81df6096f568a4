package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/docbase-tech/docbase/core"
	"github.com/docbase-tech/docbase/core/access"
	"github.com/docbase-tech/docbase/core/logger"
	"github.com/docbase-tech/docbase/store"
)

func collectionsCacheKey(projectID int64) string {
	return fmt.Sprintf("collections:%d", projectID)
}

func (b *Backend) collectionsHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())

	if cached, err := b.cache.Get(r.Context(), collectionsCacheKey(key.ProjectID)); err == nil {
		var collections []store.Collection
		if err := json.Unmarshal(cached, &collections); err == nil {
			sendJSON(w, http.StatusOK, map[string]interface{}{
				"collections": collections,
			})
			return
		}
	}

	collections, err := b.store.Collections(r.Context(), key.ProjectID)
	if err != nil {
		internalError(w, r, 4601, err)
		return
	}

	if data, err := json.MarshalWithOption(collections, json.DisableHTMLEscape()); err == nil {
		if err := b.cache.Set(r.Context(), collectionsCacheKey(key.ProjectID), data, 0); err != nil {
			logger.FromContext(r.Context()).WithError(err).Warnln("cannot cache collections")
		}
	}

	sendJSON(w, http.StatusOK, map[string]interface{}{
		"collections": collections,
	})
}

func (b *Backend) collectionHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	collectionID, ok := pathID(r, "collection")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	collection, found, err := b.store.Collection(r.Context(), key.ProjectID, collectionID)
	if err != nil {
		internalError(w, r, 4602, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "collection not found")
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"collection": collection,
	})
}

func (b *Backend) createCollectionHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	if !key.HasWrite() {
		sendError(w, http.StatusForbidden, "API key does not have write permission")
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Name == "" {
		sendError(w, http.StatusBadRequest, "collection name is required")
		return
	}

	exists, err := b.store.CollectionNameExists(r.Context(), key.ProjectID, body.Name, 0)
	if err != nil {
		internalError(w, r, 4603, err)
		return
	}
	if exists {
		sendError(w, http.StatusConflict, "collection name already exists in this project")
		return
	}

	collection, err := b.store.CreateCollection(r.Context(), key.ProjectID, body.Name, body.Description)
	if err != nil {
		// a concurrent create can slip past the exists check
		if store.IsUniqueViolation(err) {
			sendError(w, http.StatusConflict, "collection name already exists in this project")
			return
		}
		internalError(w, r, 4604, err)
		return
	}
	b.cache.Delete(r.Context(), collectionsCacheKey(key.ProjectID))

	b.record(r, &key.UserID, string(core.OperationCreate), "collection", fmt.Sprintf("%d", collection.ID), map[string]interface{}{"name": collection.Name})
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "collection created successfully",
		"collection": collection,
	})
}

func (b *Backend) updateCollectionHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	if !key.HasWrite() {
		sendError(w, http.StatusForbidden, "API key does not have write permission")
		return
	}
	collectionID, ok := pathID(r, "collection")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Name == "" {
		sendError(w, http.StatusBadRequest, "collection name is required")
		return
	}

	inProject, err := b.store.CollectionInProject(r.Context(), collectionID, key.ProjectID)
	if err != nil {
		internalError(w, r, 4605, err)
		return
	}
	if !inProject {
		sendError(w, http.StatusNotFound, "collection not found or access denied")
		return
	}

	taken, err := b.store.CollectionNameExists(r.Context(), key.ProjectID, body.Name, collectionID)
	if err != nil {
		internalError(w, r, 4606, err)
		return
	}
	if taken {
		sendError(w, http.StatusConflict, "collection name already exists in this project")
		return
	}

	if _, err := b.store.UpdateCollection(r.Context(), key.ProjectID, collectionID, body.Name, body.Description); err != nil {
		if store.IsUniqueViolation(err) {
			sendError(w, http.StatusConflict, "collection name already exists in this project")
			return
		}
		internalError(w, r, 4607, err)
		return
	}
	b.cache.Delete(r.Context(), collectionsCacheKey(key.ProjectID))

	b.record(r, &key.UserID, string(core.OperationUpdate), "collection", fmt.Sprintf("%d", collectionID), map[string]interface{}{"name": body.Name})
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "collection updated successfully",
	})
}

func (b *Backend) deleteCollectionHandler(w http.ResponseWriter, r *http.Request) {
	key, _ := access.KeyDetailsFromContext(r.Context())
	if !key.HasWrite() {
		sendError(w, http.StatusForbidden, "API key does not have write permission")
		return
	}
	collectionID, ok := pathID(r, "collection")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid collection id")
		return
	}

	deleted, err := b.store.DeleteCollection(r.Context(), key.ProjectID, collectionID)
	if err != nil {
		internalError(w, r, 4608, err)
		return
	}
	if !deleted {
		sendError(w, http.StatusNotFound, "collection not found or access denied")
		return
	}
	b.cache.Delete(r.Context(), collectionsCacheKey(key.ProjectID))

	b.record(r, &key.UserID, string(core.OperationDelete), "collection", fmt.Sprintf("%d", collectionID), nil)
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "collection deleted successfully",
	})
}

// joinsHandler is kept for backward compatibility, references are resolved
// automatically on document reads.
func (b *Backend) joinsHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Joins are now handled automatically when retrieving documents. Any document containing references to other collections will be automatically populated with the referenced data.",
	})
}
