package strata

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateRecord checks identifier formats on an inbound record. Relations
// additionally need both endpoints.
func ValidateRecord(v any) error {
	if err := recordValidator().Struct(v); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	switch r := v.(type) {
	case Relation:
		return r.CheckEndpoints()
	case *Relation:
		return r.CheckEndpoints()
	}
	return nil
}
