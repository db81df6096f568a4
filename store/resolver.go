package store

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/docbase-tech/docbase/core/logger"
)

// RefResolver implements expand.Resolver on top of the store.
//
// Lookup errors are logged and downgraded to "not found": a broken reference
// must never fail an otherwise successful document read.
type RefResolver struct {
	store *Store
}

// NewRefResolver creates a resolver on the given store.
func NewRefResolver(s *Store) *RefResolver {
	return &RefResolver{store: s}
}

// ResolveReference looks up a document by document id across all collections
// and returns its decoded data with a "_collection" annotation naming the
// owning collection. Only documents whose data is a JSON object can be
// resolved; scalar or array payloads report not found.
func (r *RefResolver) ResolveReference(ctx context.Context, documentID string) (map[string]interface{}, bool) {
	rlog := logger.FromContext(ctx)

	collectionID, raw, found, err := r.store.AnyDocumentByDocumentID(ctx, documentID)
	if err != nil {
		rlog.WithError(err).Warnf("reference lookup failed for document id '%s'", documentID)
		return nil, false
	}
	if !found {
		return nil, false
	}

	// null data unmarshals into a nil map without error
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		rlog.Debugf("referenced document '%s' does not hold an object, not resolved", documentID)
		return nil, false
	}

	name, ok, err := r.store.CollectionName(ctx, collectionID)
	if err != nil {
		rlog.WithError(err).Warnf("collection name lookup failed for collection %d", collectionID)
	} else if ok {
		data["_collection"] = name
	}
	return data, true
}
