package duplicate

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// docBlob is the decoded structural form of a document collab's encoded
// bytes, restricted to the two places a `page` mention can live: block
// deltas and the rich-text run map. Both must be rewritten, or duplication
// leaves silent inconsistencies.
type docBlob struct {
	Blocks  map[string]*blockEntry `json:"blocks"`
	TextMap map[string][]textDelta `json:"text_map"`
}

type blockEntry struct {
	Data  map[string]interface{} `json:"data,omitempty"`
	Delta []textDelta            `json:"delta,omitempty"`
}

type textDelta struct {
	Insert     string                 `json:"insert,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

func decodeDocBlob(raw []byte) (*docBlob, error) {
	var b = &docBlob{Blocks: map[string]*blockEntry{}, TextMap: map[string][]textDelta{}}
	if len(raw) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(raw, b); err != nil {
		return nil, err
	}
	if b.Blocks == nil {
		b.Blocks = map[string]*blockEntry{}
	}
	if b.TextMap == nil {
		b.TextMap = map[string][]textDelta{}
	}
	return b, nil
}

func (b *docBlob) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// RewriteMentions walks every block delta and every text-map run, resolving
// each `page`-kind mention's page_id through resolve. resolve reports
// whether the mention was rewritten; an unresolved mention is left exactly
// as it was (the renderer shows it as a broken reference).
func (b *docBlob) RewriteMentions(resolve func(pageID string) (string, bool)) {
	for _, block := range b.Blocks {
		rewriteDeltaMentions(block.Delta, resolve)
	}
	for key, deltas := range b.TextMap {
		rewriteDeltaMentions(deltas, resolve)
		b.TextMap[key] = deltas
	}
}

func rewriteDeltaMentions(deltas []textDelta, resolve func(string) (string, bool)) {
	for i := range deltas {
		var attrs = deltas[i].Attributes
		if attrs == nil {
			continue
		}
		mention, ok := attrs["mention"].(map[string]interface{})
		if !ok {
			continue
		}
		if kind, _ := mention["type"].(string); kind != "page" {
			continue
		}
		pageID, _ := mention["page_id"].(string)
		if pageID == "" {
			continue
		}
		if newID, rewritten := resolve(pageID); rewritten {
			mention["page_id"] = newID
		}
	}
}
