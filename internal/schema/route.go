package schema

import "ingest/internal/record"

// Route decides the target schema of an extracted record set from its content.
//
// A set is Zeus when any record carries a populated pressao_succao; every other
// set, including an empty one, is Elipse. Route runs at insertion time and is
// independent of Classify: it is the authority for which table receives the
// rows, while Classify is the authority for whether a file was acceptable.
func Route(records []record.Record) Kind {
	for _, r := range records {
		if r.Has("pressao_succao") {
			return Zeus
		}
	}
	return Elipse
}
