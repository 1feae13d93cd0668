package app

import (
	"fmt"

	hospitalUseCase "github.com/allisson/courier/internal/hospital/usecase"
	outboxHTTP "github.com/allisson/courier/internal/outbox/http"
	outboxRepository "github.com/allisson/courier/internal/outbox/repository"
	outboxUseCase "github.com/allisson/courier/internal/outbox/usecase"
)

// WorkItemRepository returns the outbox repository based on database driver.
func (c *Container) WorkItemRepository() (outboxUseCase.WorkItemRepository, error) {
	var err error
	c.workItemRepositoryInit.Do(func() {
		c.workItemRepository, err = c.initWorkItemRepository()
		if err != nil {
			c.initErrors["workItemRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["workItemRepository"]; exists {
		return nil, storedErr
	}
	return c.workItemRepository, nil
}

// Registry returns the outbox consumer registry. Consumers must be registered before the
// deliverer starts.
func (c *Container) Registry() (*outboxUseCase.Registry, error) {
	var err error
	c.registryInit.Do(func() {
		c.registry, err = c.initRegistry()
		if err != nil {
			c.initErrors["registry"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["registry"]; exists {
		return nil, storedErr
	}
	return c.registry, nil
}

// Producer returns the outbox producer.
func (c *Container) Producer() (outboxUseCase.Producer, error) {
	var err error
	c.producerInit.Do(func() {
		c.producer, err = c.initProducer()
		if err != nil {
			c.initErrors["producer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["producer"]; exists {
		return nil, storedErr
	}
	return c.producer, nil
}

// Inspector returns the read-only outbox inspector.
func (c *Container) Inspector() (outboxUseCase.Inspector, error) {
	var err error
	c.inspectorInit.Do(func() {
		c.inspector, err = c.initInspector()
		if err != nil {
			c.initErrors["inspector"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["inspector"]; exists {
		return nil, storedErr
	}
	return c.inspector, nil
}

// Deliverer returns the outbox deliverer.
func (c *Container) Deliverer() (*outboxUseCase.Deliverer, error) {
	var err error
	c.delivererInit.Do(func() {
		c.deliverer, err = c.initDeliverer()
		if err != nil {
			c.initErrors["deliverer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deliverer"]; exists {
		return nil, storedErr
	}
	return c.deliverer, nil
}

// OutboxHandler returns the HTTP handler for outbox inspection.
func (c *Container) OutboxHandler() (*outboxHTTP.OutboxHandler, error) {
	var err error
	c.outboxHandlerInit.Do(func() {
		c.outboxHandler, err = c.initOutboxHandler()
		if err != nil {
			c.initErrors["outboxHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["outboxHandler"]; exists {
		return nil, storedErr
	}
	return c.outboxHandler, nil
}

// initWorkItemRepository creates the outbox repository based on the database driver.
func (c *Container) initWorkItemRepository() (outboxUseCase.WorkItemRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for work item repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return outboxRepository.NewPostgreSQLWorkItemRepository(db), nil
	case "mysql":
		return outboxRepository.NewMySQLWorkItemRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initRegistry creates the consumer registry. When a consumer group is configured, the
// Hospital group consumer is subscribed to the dead-letter topic.
func (c *Container) initRegistry() (*outboxUseCase.Registry, error) {
	registry := outboxUseCase.NewRegistry()

	if c.config.HospitalConsumerGroup == "" {
		return registry, nil
	}

	recordRepository, err := c.RecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get record repository for registry: %w", err)
	}

	s, err := c.Serializer()
	if err != nil {
		return nil, fmt.Errorf("failed to get serializer for registry: %w", err)
	}

	consumer := hospitalUseCase.NewGroupConsumer(c.config.HospitalConsumerGroup, recordRepository, s, c.Logger())
	if err := registry.Register(c.config.HospitalTopic, c.config.HospitalConsumerGroup, consumer); err != nil {
		return nil, fmt.Errorf("failed to register hospital group consumer: %w", err)
	}

	return registry, nil
}

// initProducer creates the outbox producer.
func (c *Container) initProducer() (outboxUseCase.Producer, error) {
	workItemRepository, err := c.WorkItemRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get work item repository for producer: %w", err)
	}

	s, err := c.Serializer()
	if err != nil {
		return nil, fmt.Errorf("failed to get serializer for producer: %w", err)
	}

	return outboxUseCase.NewProducer(workItemRepository, s), nil
}

// initInspector creates the outbox inspector.
func (c *Container) initInspector() (outboxUseCase.Inspector, error) {
	workItemRepository, err := c.WorkItemRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get work item repository for inspector: %w", err)
	}

	return outboxUseCase.NewInspector(workItemRepository), nil
}

// initDeliverer creates the deliverer with all its dependencies.
func (c *Container) initDeliverer() (*outboxUseCase.Deliverer, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for deliverer: %w", err)
	}

	workItemRepository, err := c.WorkItemRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get work item repository for deliverer: %w", err)
	}

	registry, err := c.Registry()
	if err != nil {
		return nil, fmt.Errorf("failed to get registry for deliverer: %w", err)
	}

	hospital, err := c.HospitalUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital use case for deliverer: %w", err)
	}

	s, err := c.Serializer()
	if err != nil {
		return nil, fmt.Errorf("failed to get serializer for deliverer: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for deliverer: %w", err)
	}

	delivererConfig := outboxUseCase.Config{
		BatchSize:          c.config.OutboxBatchSize,
		InitialDelay:       c.config.OutboxInitialDelay,
		PollInterval:       c.config.OutboxPollInterval,
		MaxRetries:         c.config.OutboxMaxRetries,
		BackoffBase:        c.config.OutboxBackoffBase,
		UnroutableTerminal: c.config.OutboxUnroutableTerminal,
	}

	return outboxUseCase.NewDeliverer(
		delivererConfig,
		txManager,
		workItemRepository,
		registry,
		hospital,
		s,
		businessMetrics,
		c.Logger(),
	), nil
}

// initOutboxHandler creates the outbox HTTP handler.
func (c *Container) initOutboxHandler() (*outboxHTTP.OutboxHandler, error) {
	inspector, err := c.Inspector()
	if err != nil {
		return nil, fmt.Errorf("failed to get inspector for outbox handler: %w", err)
	}

	return outboxHTTP.NewOutboxHandler(inspector, c.Logger()), nil
}
