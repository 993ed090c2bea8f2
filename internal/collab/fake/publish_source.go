package fake

import (
	"context"
	"sync"
)

// publishedRow is one entry seeded into a PublishSource.
type publishedRow struct {
	metadata []byte
	raw      []byte
}

// PublishSource is an in-memory collab.PublishSource keyed by view id.
type PublishSource struct {
	mu   sync.Mutex
	rows map[string]publishedRow
}

// NewPublishSource returns an empty PublishSource.
func NewPublishSource() *PublishSource {
	return &PublishSource{rows: make(map[string]publishedRow)}
}

// Publish seeds a published (metadata, raw) pair for viewID.
func (p *PublishSource) Publish(viewID string, metadataJSON, raw []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[viewID] = publishedRow{metadata: metadataJSON, raw: raw}
}

func (p *PublishSource) SelectPublishedDataForViewID(_ context.Context, viewID string) ([]byte, []byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[viewID]
	if !ok {
		return nil, nil, false, nil
	}
	return row.metadata, row.raw, true, nil
}
