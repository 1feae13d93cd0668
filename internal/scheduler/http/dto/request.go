// Package dto provides data transfer objects for job HTTP requests and responses.
package dto

import (
	"encoding/json"
	"time"

	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/courier/internal/validation"
)

// EnqueueJobRequest contains the parameters for enqueuing a one-shot job.
// The task name is extracted from the URL parameter, not the request body.
type EnqueueJobRequest struct {
	Payload    json.RawMessage `json:"payload"`
	InstanceID string          `json:"instance_id"`
	ExecuteAt  *time.Time      `json:"execute_at"`
}

// Validate checks if the enqueue job request is valid.
func (r *EnqueueJobRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.InstanceID,
			validation.Length(1, 255),
			customValidation.NoWhitespace,
		),
	)
}
