package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	schedulerUseCase "github.com/allisson/courier/internal/scheduler/usecase"
)

// EnqueueJobInput holds the raw command-line values of enqueue-job.
type EnqueueJobInput struct {
	TaskName   string
	Payload    string
	InstanceID string
	At         string
}

// RunEnqueueJob enqueues a one-shot job. The payload is decoded into the type registered for
// the task; an omitted instance id is generated and an omitted time means now.
func RunEnqueueJob(
	ctx context.Context,
	jobUseCase schedulerUseCase.JobUseCase,
	logger *slog.Logger,
	writer io.Writer,
	input EnqueueJobInput,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	executeAt := time.Now().UTC()
	if input.At != "" {
		parsed, err := time.Parse(time.RFC3339, input.At)
		if err != nil {
			return fmt.Errorf("invalid execution time %q: %w", input.At, err)
		}
		executeAt = parsed.UTC()
	}

	payload, err := jobUseCase.PayloadFromJSON(input.TaskName, []byte(input.Payload))
	if err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	instanceID := input.InstanceID
	if instanceID == "" {
		instanceID = uuid.Must(uuid.NewV7()).String()
	}

	if err := jobUseCase.AddJobWithID(ctx, input.TaskName, instanceID, payload, executeAt); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	logger.Info("job enqueued",
		slog.String("task_name", input.TaskName),
		slog.String("task_instance", instanceID),
		slog.Time("execution_time", executeAt),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"task_name":      input.TaskName,
			"task_instance":  instanceID,
			"execution_time": executeAt,
		})
	}

	_, _ = fmt.Fprintf(writer, "Enqueued %s/%s for %s\n", input.TaskName, instanceID, executeAt.Format(time.RFC3339))
	return nil
}

// RunCancelJob removes a pending task instance.
func RunCancelJob(
	ctx context.Context,
	jobUseCase schedulerUseCase.JobUseCase,
	logger *slog.Logger,
	writer io.Writer,
	taskName, instanceID string,
) error {
	if err := jobUseCase.Cancel(ctx, taskName, instanceID); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	logger.Info("job cancelled",
		slog.String("task_name", taskName),
		slog.String("task_instance", instanceID),
	)

	_, _ = fmt.Fprintf(writer, "Cancelled %s/%s\n", taskName, instanceID)
	return nil
}
