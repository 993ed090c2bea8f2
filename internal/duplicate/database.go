package duplicate

// databaseEnvelope is the published-blob wire format for a Database view:
// a JSON envelope holding the main database collab and each row's collab as
// byte arrays (jsoniter marshals []byte the same way encoding/json does,
// as base64 strings on the wire).
type databaseEnvelope struct {
	Database []byte            `json:"database"`
	Rows     map[string][]byte `json:"rows"`
}

func decodeDatabaseEnvelope(raw []byte) (*databaseEnvelope, error) {
	var env databaseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Rows == nil {
		env.Rows = map[string][]byte{}
	}
	return &env, nil
}

// setNestedString writes value at the given dotted path inside doc,
// creating intermediate maps as needed. Used to overwrite fields.id,
// data.id, and data.database_id without requiring a fully-typed schema for
// the rest of the database/row collab.
func setNestedString(doc map[string]interface{}, path []string, value string) {
	var cur = doc
	for i, key := range path {
		if i == len(path)-1 {
			cur[key] = value
			return
		}
		next, ok := cur[key].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[key] = next
		}
		cur = next
	}
}
