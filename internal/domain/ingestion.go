package domain

import "sort"

// IngestionStage is the furthest point an ingestion run reached.
type IngestionStage string

const (
	StageReceived   IngestionStage = "received"
	StageNormalized IngestionStage = "normalized"
	StageStored     IngestionStage = "stored"
	StageInferred   IngestionStage = "inferred"
	StageParsed     IngestionStage = "parsed"
	StageMerged     IngestionStage = "merged"
	StageCompleted  IngestionStage = "completed"
	StageFailed     IngestionStage = "failed"
)

// IngestionRequest is one uploaded photo. It only lives for the duration of
// a single pipeline run.
type IngestionRequest struct {
	Data        []byte
	ContentType string
	Filename    string
}

// IngestionResult maps item names to positive quantity deltas inferred from
// one image.
type IngestionResult map[string]int

// Names returns the item names in lexical order.
func (r IngestionResult) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r IngestionResult) Validate() error {
	for name, qty := range r {
		if err := ValidateItemName(name); err != nil {
			return err
		}
		if err := ValidateDelta(qty); err != nil {
			return err
		}
	}
	return nil
}
