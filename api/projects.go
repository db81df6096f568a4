package api

import (
	"fmt"
	"net/http"

	"github.com/docbase-tech/docbase/core"
	"github.com/docbase-tech/docbase/core/access"
	"github.com/docbase-tech/docbase/core/logger"
)

func (b *Backend) projectsHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	projects, err := b.store.Projects(r.Context(), user.ID)
	if err != nil {
		internalError(w, r, 4401, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
	})
}

func (b *Backend) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Name == "" {
		sendError(w, http.StatusBadRequest, "project name is required")
		return
	}

	project, err := b.store.CreateProject(r.Context(), user.ID, body.Name, body.Description)
	if err != nil {
		internalError(w, r, 4402, err)
		return
	}

	b.record(r, &user.ID, string(core.OperationCreate), "project", fmt.Sprintf("%d", project.ID), map[string]interface{}{"name": project.Name})
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "project created successfully",
		"project": project,
	})
}

func (b *Backend) projectHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	projectID, ok := pathID(r, "project")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	project, found, err := b.store.Project(r.Context(), user.ID, projectID)
	if err != nil {
		internalError(w, r, 4403, err)
		return
	}
	// projects of other users are indistinguishable from missing ones
	if !found {
		sendError(w, http.StatusNotFound, "project not found or access denied")
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"project": project,
	})
}

func (b *Backend) updateProjectHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	projectID, ok := pathID(r, "project")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid project id")
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
		sendError(w, http.StatusBadRequest, "project name is required")
		return
	}

	updated, err := b.store.UpdateProject(r.Context(), user.ID, projectID, body.Name, body.Description)
	if err != nil {
		internalError(w, r, 4404, err)
		return
	}
	if !updated {
		sendError(w, http.StatusNotFound, "project not found or access denied")
		return
	}

	b.record(r, &user.ID, string(core.OperationUpdate), "project", fmt.Sprintf("%d", projectID), map[string]interface{}{"name": body.Name})
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "project updated successfully",
	})
}

func (b *Backend) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := access.UserFromContext(r.Context())
	projectID, ok := pathID(r, "project")
	if !ok {
		sendError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	deleted, err := b.store.DeleteProject(r.Context(), user.ID, projectID)
	if err != nil {
		internalError(w, r, 4405, err)
		return
	}
	if !deleted {
		sendError(w, http.StatusNotFound, "project not found or access denied")
		return
	}

	// stored file blobs of the project go with it, the rows went via cascade
	if b.blobs != nil {
		if err := b.blobs.DeleteAllWithPrefix(fmt.Sprintf("%d", projectID)); err != nil {
			logger.FromContext(r.Context()).WithError(err).Warnf("Warning 4406: cannot delete blobs of project %d", projectID)
		}
	}
	b.cache.Delete(r.Context(), collectionsCacheKey(projectID))

	b.record(r, &user.ID, string(core.OperationDelete), "project", fmt.Sprintf("%d", projectID), nil)
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "project deleted successfully",
	})
}
