package pagination

import (
	"bytes"
	"encoding/json"
)

// Hit is one search result.
type Hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

// Batch is one page of hits plus the cursor id that continues after it.
type Batch struct {
	// ScrollID is empty when the response carried no id or a null one.
	ScrollID string

	Hits []Hit

	// TotalHits is the server's total for the query, or -1 when not reported.
	TotalHits int64
}

// Len returns the number of hits in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Hits)
}

type searchResponse struct {
	ScrollID *string        `json:"_scroll_id"`
	Hits     *hitsContainer `json:"hits"`
}

type hitsContainer struct {
	Total json.RawMessage `json:"total"`
	Hits  *[]Hit          `json:"hits"`
}

// decodeBatch turns a 200 body into a Batch. A missing or null hits
// container is malformed; an empty hits array is a valid, empty batch.
func decodeBatch(body []byte) (*Batch, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &MalformedResponseError{Reason: "empty body"}
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{Reason: "decode body", Err: err}
	}

	var scrollID string
	if resp.ScrollID != nil {
		scrollID = *resp.ScrollID
	}

	if resp.Hits == nil {
		return nil, &MalformedResponseError{Reason: "missing hits container", ScrollID: scrollID}
	}
	if resp.Hits.Hits == nil {
		return nil, &MalformedResponseError{Reason: "missing hits.hits array", ScrollID: scrollID}
	}

	return &Batch{
		ScrollID:  scrollID,
		Hits:      *resp.Hits.Hits,
		TotalHits: decodeTotal(resp.Hits.Total),
	}, nil
}

// decodeTotal accepts both the object form {"value": n} and a bare number.
func decodeTotal(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return -1
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}

	var obj struct {
		Value *int64 `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != nil {
		return *obj.Value
	}

	return -1
}
