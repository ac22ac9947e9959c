package generator

import (
	"context"
	"encoding/json"
	"time"
)

// DraftKey names the single durable slot holding the last post.
const DraftKey = "medisocial_last_post"

// DraftSlot is durable storage for one serialized post result.
type DraftSlot interface {
	Load(ctx context.Context) ([]byte, bool, error)
	Save(ctx context.Context, data []byte) error
}

const draftSaveTimeout = 5 * time.Second

// RestoreDraft loads the persisted post once at startup. A read failure or an
// unparseable value is logged and treated as no draft.
func (o *Orchestrator) RestoreDraft(ctx context.Context) bool {
	if o.draft == nil {
		return false
	}
	data, ok, err := o.draft.Load(ctx)
	if err != nil {
		o.log.Warn("failed to load draft", "key", DraftKey, "error", err)
		return false
	}
	if !ok || len(data) == 0 {
		return false
	}
	var r PostResult
	if err := json.Unmarshal(data, &r); err != nil || r.ID == "" || r.Content == nil {
		o.log.Warn("ignoring corrupt draft", "key", DraftKey, "bytes", len(data), "error", err)
		return false
	}
	o.post.restore(&r)
	o.log.Info("restored draft", "result_id", r.ID)
	return true
}

// persistDraft runs under the post slot lock, so saves are serialized.
func (o *Orchestrator) persistDraft(r *PostResult) {
	data, err := json.Marshal(r)
	if err != nil {
		o.log.Error("failed to encode draft", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), draftSaveTimeout)
	defer cancel()
	if err := o.draft.Save(ctx, data); err != nil {
		o.log.Warn("failed to save draft", "key", DraftKey, "error", err)
	}
}
