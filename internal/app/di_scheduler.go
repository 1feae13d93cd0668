package app

import (
	"fmt"

	schedulerHTTP "github.com/allisson/courier/internal/scheduler/http"
	schedulerRepository "github.com/allisson/courier/internal/scheduler/repository"
	schedulerUseCase "github.com/allisson/courier/internal/scheduler/usecase"
)

// TaskRepository returns the scheduled task repository based on database driver.
func (c *Container) TaskRepository() (schedulerUseCase.TaskRepository, error) {
	var err error
	c.taskRepositoryInit.Do(func() {
		c.taskRepository, err = c.initTaskRepository()
		if err != nil {
			c.initErrors["taskRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["taskRepository"]; exists {
		return nil, storedErr
	}
	return c.taskRepository, nil
}

// Scheduler returns the task scheduler with the built-in tasks registered. Application tasks
// must be registered before Start.
func (c *Container) Scheduler() (*schedulerUseCase.Scheduler, error) {
	var err error
	c.schedulerInit.Do(func() {
		c.scheduler, err = c.initScheduler()
		if err != nil {
			c.initErrors["scheduler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["scheduler"]; exists {
		return nil, storedErr
	}
	return c.scheduler, nil
}

// JobHandler returns the HTTP handler for one-shot jobs.
func (c *Container) JobHandler() (*schedulerHTTP.JobHandler, error) {
	var err error
	c.jobHandlerInit.Do(func() {
		c.jobHandler, err = c.initJobHandler()
		if err != nil {
			c.initErrors["jobHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["jobHandler"]; exists {
		return nil, storedErr
	}
	return c.jobHandler, nil
}

// initTaskRepository creates the task repository based on the database driver.
func (c *Container) initTaskRepository() (schedulerUseCase.TaskRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for task repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return schedulerRepository.NewPostgreSQLTaskRepository(db), nil
	case "mysql":
		return schedulerRepository.NewMySQLTaskRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initScheduler creates the scheduler and registers the built-in tasks.
func (c *Container) initScheduler() (*schedulerUseCase.Scheduler, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for scheduler: %w", err)
	}

	taskRepository, err := c.TaskRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get task repository for scheduler: %w", err)
	}

	s, err := c.Serializer()
	if err != nil {
		return nil, fmt.Errorf("failed to get serializer for scheduler: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for scheduler: %w", err)
	}

	scheduler := schedulerUseCase.NewScheduler(
		schedulerUseCase.Config{
			Threads:           c.config.SchedulerThreads,
			PollInterval:      c.config.SchedulerPollInterval,
			HeartbeatInterval: c.config.SchedulerHeartbeatInterval,
			ShutdownMaxWait:   c.config.SchedulerShutdownMaxWait,
			StaleTimeout:      c.config.SchedulerStaleTimeout,
			MaxFailures:       c.config.SchedulerMaxFailures,
			RetryBase:         c.config.SchedulerRetryBase,
			WorkerName:        c.config.WorkerName,
		},
		txManager,
		taskRepository,
		s,
		businessMetrics,
		c.Logger(),
	)

	inspector, err := c.Inspector()
	if err != nil {
		return nil, fmt.Errorf("failed to get inspector for scheduler: %w", err)
	}

	deliverer, err := c.Deliverer()
	if err != nil {
		return nil, fmt.Errorf("failed to get deliverer for scheduler: %w", err)
	}

	if err := registerBuiltinTasks(
		scheduler,
		inspector,
		deliverer,
		businessMetrics,
		c.config.OutboxBacklogAlertAge,
		c.Logger(),
	); err != nil {
		return nil, fmt.Errorf("failed to register built-in tasks: %w", err)
	}

	return scheduler, nil
}

// initJobHandler creates the job HTTP handler.
func (c *Container) initJobHandler() (*schedulerHTTP.JobHandler, error) {
	scheduler, err := c.Scheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduler for job handler: %w", err)
	}

	return schedulerHTTP.NewJobHandler(scheduler, c.Logger()), nil
}
