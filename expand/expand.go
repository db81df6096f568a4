/*Package expand implements automatic reference resolution for document reads.

A stored document may contain fields that reference other documents by their
document id, following a naming convention: a field counts as a reference
when its name ends with "id", "ref" or "document" (case-insensitive,
optionally preceded by an underscore) and its value is a string. On read,
every such field is resolved with a cross-collection lookup and the
referenced document's data is spliced into the result as an additional
"<base>_data" field, where <base> is the field name with the reference
suffix stripped. The original reference field is kept untouched.

Expansion recurses into nested objects and arrays up to a fixed depth, and
skips synthetic fields ("_collection", anything containing "_data") so that
an already-expanded document can safely be expanded again.
*/
package expand

import (
	"context"
	"regexp"
	"strings"
)

// maxDepth bounds recursive expansion. A call at depth greater than maxDepth
// returns its input unchanged, which caps the worst-case number of resolver
// lookups for a single read and breaks reference cycles.
const maxDepth = 2

var referenceSuffix = regexp.MustCompile(`(?i)(^|_)(id|ref|document)$`)

// IsReferenceField reports whether the field name denotes a document
// reference by naming convention, and returns the base name used for the
// synthetic "<base>_data" field. The base name is the field name with the
// matched suffix and its optional leading underscore removed; for a field
// named just "id" the base name is empty and the synthetic field becomes
// "_data".
//
// The decision is purely syntactic. Callers must verify separately that the
// field value is a non-null string before resolving it.
func IsReferenceField(field string) (bool, string) {
	if !referenceSuffix.MatchString(field) {
		return false, ""
	}
	return true, referenceSuffix.ReplaceAllString(field, "")
}

// Resolver resolves a document reference value to the referenced document's
// data. Implementations look up the document id across all collections and
// annotate the returned object with a "_collection" key holding the owning
// collection's name. A failed or errored lookup reports found == false;
// resolution must never fail an otherwise successful read.
type Resolver interface {
	ResolveReference(ctx context.Context, documentID string) (payload map[string]interface{}, found bool)
}

// Expander walks decoded JSON documents and splices resolved references into
// the result. It is stateless apart from the resolver and safe for
// concurrent use.
type Expander struct {
	resolver Resolver
}

// New creates an Expander on top of the given resolver.
func New(resolver Resolver) *Expander {
	if resolver == nil {
		panic("resolver is missing")
	}
	return &Expander{resolver: resolver}
}

// Expand returns a copy of value with document references resolved. The
// top-level call passes depth 0; recursion into nested containers increments
// it. Values that are not objects or arrays, empty containers, and values
// reached beyond the depth bound are returned unchanged. The input is never
// modified.
func (e *Expander) Expand(ctx context.Context, value interface{}, depth int) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		if len(v) == 0 || depth > maxDepth {
			return value
		}
		out := make(map[string]interface{}, len(v)+1)
		for field, fieldValue := range v {
			if fieldValue == nil {
				out[field] = nil
				continue
			}
			// synthetic fields from a previous expansion must not be
			// expanded again
			if field == "_collection" || strings.Contains(field, "_data") {
				out[field] = fieldValue
				continue
			}
			if isRef, base := IsReferenceField(field); isRef {
				if documentID, isString := fieldValue.(string); isString {
					out[field] = fieldValue
					if payload, found := e.resolver.ResolveReference(ctx, documentID); found {
						out[base+"_data"] = payload
					}
					continue
				}
			}
			switch fieldValue.(type) {
			case map[string]interface{}, []interface{}:
				out[field] = e.Expand(ctx, fieldValue, depth+1)
			default:
				out[field] = fieldValue
			}
		}
		return out

	case []interface{}:
		if len(v) == 0 || depth > maxDepth {
			return value
		}
		// arrays have no field names, reference detection only applies to
		// object keys
		out := make([]interface{}, len(v))
		for i, element := range v {
			out[i] = e.Expand(ctx, element, depth+1)
		}
		return out

	default:
		return value
	}
}
