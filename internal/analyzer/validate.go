package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrWong99/gaia/pkg/types"
)

type wireResult struct {
	Opportunities *[]wireOpportunity `json:"opportunities"`
}

// wireOpportunity uses pointers so missing fields can be told apart from
// empty ones.
type wireOpportunity struct {
	ID          *string  `json:"id"`
	Type        *string  `json:"type"`
	Trigger     *string  `json:"trigger"`
	Content     *string  `json:"content"`
	Explanation *string  `json:"explanation"`
	Timestamp   *float64 `json:"timestamp"`
}

// Validate decodes a {"opportunities":[...]} document and checks it against
// the opportunity schema: the array must be present, every item must carry all
// six fields and type must be one of the known values. A single bad item
// rejects the whole document. Errors wrap [ErrSchemaValidation].
//
// Timestamps are checked for presence but copied verbatim; callers stamp
// their own receipt time.
func Validate(raw []byte) ([]types.OpportunityCard, error) {
	var res wireResult
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSchemaValidation, err)
	}
	if res.Opportunities == nil {
		return nil, fmt.Errorf("%w: missing opportunities array", ErrSchemaValidation)
	}

	items := *res.Opportunities
	var errs []error
	cards := make([]types.OpportunityCard, 0, len(items))
	for i, o := range items {
		if err := o.check(); err != nil {
			errs = append(errs, fmt.Errorf("opportunities[%d]: %w", i, err))
			continue
		}
		cards = append(cards, types.OpportunityCard{
			ID:          *o.ID,
			Type:        types.OpportunityType(*o.Type),
			Trigger:     *o.Trigger,
			Content:     *o.Content,
			Explanation: *o.Explanation,
			Timestamp:   int64(*o.Timestamp),
		})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrSchemaValidation, errors.Join(errs...))
	}
	return cards, nil
}

func (o wireOpportunity) check() error {
	var missing []string
	if o.ID == nil {
		missing = append(missing, "id")
	}
	if o.Type == nil {
		missing = append(missing, "type")
	}
	if o.Trigger == nil {
		missing = append(missing, "trigger")
	}
	if o.Content == nil {
		missing = append(missing, "content")
	}
	if o.Explanation == nil {
		missing = append(missing, "explanation")
	}
	if o.Timestamp == nil {
		missing = append(missing, "timestamp")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields %v", missing)
	}
	if !types.OpportunityType(*o.Type).IsValid() {
		return fmt.Errorf("type %q not in %v", *o.Type, types.OpportunityTypes)
	}
	return nil
}
