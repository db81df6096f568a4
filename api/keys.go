package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"

	"github.com/docbase-tech/docbase/core"
	"github.com/docbase-tech/docbase/core/access"
)

// generateAPIKey returns a fresh key string, "dbk_" and 40 hex characters.
func generateAPIKey() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return "dbk_" + hex.EncodeToString(buf)
}

func (b *Backend) apiKeysHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	projectID, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	if err != nil || projectID <= 0 {
		sendError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	_, found, err := b.store.Project(r.Context(), user.ID, projectID)
	if err != nil {
		internalError(w, r, 4501, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "project not found or access denied")
		return
	}

	keys, err := b.store.APIKeys(r.Context(), projectID)
	if err != nil {
		internalError(w, r, 4502, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"keys": keys,
	})
}

func (b *Backend) createAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	var body struct {
		ProjectID   int64  `json:"project_id"`
		Name        string `json:"name"`
		Permissions string `json:"permissions"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.ProjectID <= 0 {
		sendError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if body.Name == "" {
		sendError(w, http.StatusBadRequest, "API key name is required")
		return
	}
	if body.Permissions == "" {
		body.Permissions = "read"
	}
	if !access.ValidPermissions(body.Permissions) {
		sendError(w, http.StatusBadRequest, "invalid permissions, valid values are: read, write, read,write")
		return
	}

	_, found, err := b.store.Project(r.Context(), user.ID, body.ProjectID)
	if err != nil {
		internalError(w, r, 4503, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "project not found or access denied")
		return
	}

	key, err := b.store.CreateAPIKey(r.Context(), body.ProjectID, generateAPIKey(), body.Name, body.Permissions)
	if err != nil {
		internalError(w, r, 4504, err)
		return
	}

	b.record(r, &user.ID, string(core.OperationCreate), "api_key", fmt.Sprintf("%d", key.ID), map[string]interface{}{"name": key.Name, "permissions": key.Permissions})
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "API key created successfully",
		"key":     key,
	})
}

func (b *Backend) apiKeyHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	keyID, ok := pathID(r, "key")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	key, found, err := b.store.APIKeyByID(r.Context(), user.ID, keyID)
	if err != nil {
		internalError(w, r, 4505, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "API key not found or access denied")
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"key": key,
	})
}

func (b *Backend) updateAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	keyID, ok := pathID(r, "key")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	var body struct {
		Name        string  `json:"name"`
		Permissions *string `json:"permissions"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Name == "" {
		sendError(w, http.StatusBadRequest, "API key name is required")
		return
	}

	key, found, err := b.store.APIKeyByID(r.Context(), user.ID, keyID)
	if err != nil {
		internalError(w, r, 4506, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "API key not found or access denied")
		return
	}

	// permissions stay as they are unless the request names new ones
	permissions := key.Permissions
	if body.Permissions != nil {
		permissions = *body.Permissions
		if !access.ValidPermissions(permissions) {
			sendError(w, http.StatusBadRequest, "invalid permissions, valid values are: read, write, read,write")
			return
		}
	}

	updated, err := b.store.UpdateAPIKey(r.Context(), user.ID, keyID, body.Name, permissions)
	if err != nil {
		internalError(w, r, 4507, err)
		return
	}
	if !updated {
		sendError(w, http.StatusNotFound, "API key not found or access denied")
		return
	}

	b.record(r, &user.ID, string(core.OperationUpdate), "api_key", fmt.Sprintf("%d", keyID), map[string]interface{}{"name": body.Name, "permissions": permissions})
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "API key updated successfully",
	})
}

func (b *Backend) deleteAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	keyID, ok := pathID(r, "key")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	deleted, err := b.store.DeleteAPIKey(r.Context(), user.ID, keyID)
	if err != nil {
		internalError(w, r, 4508, err)
		return
	}
	if !deleted {
		sendError(w, http.StatusNotFound, "API key not found or access denied")
		return
	}

	b.record(r, &user.ID, string(core.OperationDelete), "api_key", fmt.Sprintf("%d", keyID), nil)
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "API key deleted successfully",
	})
}
