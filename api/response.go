package api

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/docbase-tech/docbase/activity"
	"github.com/docbase-tech/docbase/core/logger"
)

// sendJSON writes a success payload. Every success body carries
// "success": true next to the payload fields.
func sendJSON(w http.ResponseWriter, status int, payload map[string]interface{}) {
	body := map[string]interface{}{"success": true}
	for key, value := range payload {
		body[key] = value
	}
	jsonData, _ := json.MarshalWithOption(body, json.DisableHTMLEscape())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// sendError writes an error envelope with the given status.
func sendError(w http.ResponseWriter, status int, message string) {
	jsonData, _ := json.MarshalWithOption(map[string]interface{}{
		"error":   true,
		"message": message,
	}, json.DisableHTMLEscape())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

// internalError logs the error under a numeric code and responds with an
// opaque body carrying the same code.
func internalError(w http.ResponseWriter, r *http.Request, code int, err error) {
	logger.FromContext(r.Context()).WithError(err).Errorf("Error %d", code)
	sendError(w, http.StatusInternalServerError, fmt.Sprintf("Error %d", code))
}

// readJSON decodes the request body into target. It answers with 400 and
// returns false when the body is not valid JSON.
func readJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, target)
	}
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

func paginate(total, page, limit int) pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return pagination{Total: total, Page: page, Limit: limit, Pages: pages}
}

// pageParams reads page and limit from the query string: page >= 1
// (default 1), limit >= 1 (default 20, capped at maxLimit when positive).
func pageParams(r *http.Request, maxLimit int) (page, limit int) {
	page, limit = 1, 20
	if value, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && value > 1 {
		page = value
	}
	if value, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && value >= 1 {
		limit = value
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func pathID(r *http.Request, name string) (int64, bool) {
	value, err := strconv.ParseInt(muxVar(r, name), 10, 64)
	return value, err == nil && value > 0
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// record queues an audit entry when activity logging is wired.
func (b *Backend) record(r *http.Request, userID *int64, action, entityType, entityID string, details map[string]interface{}) {
	if b.activity == nil {
		return
	}
	b.activity.Record(r.Context(), activity.Entry{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  remoteIP(r),
	})
}
