package app

import (
	"fmt"

	"github.com/getsentry/sentry-go"

	hospitalHTTP "github.com/allisson/courier/internal/hospital/http"
	hospitalRepository "github.com/allisson/courier/internal/hospital/repository"
	hospitalUseCase "github.com/allisson/courier/internal/hospital/usecase"
)

// RecordRepository returns the hospital record repository based on database driver.
func (c *Container) RecordRepository() (hospitalUseCase.RecordRepository, error) {
	var err error
	c.recordRepositoryInit.Do(func() {
		c.recordRepository, err = c.initRecordRepository()
		if err != nil {
			c.initErrors["recordRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recordRepository"]; exists {
		return nil, storedErr
	}
	return c.recordRepository, nil
}

// Alerter returns the admission alerter: Sentry when a DSN is configured, no-op otherwise.
func (c *Container) Alerter() (hospitalUseCase.Alerter, error) {
	var err error
	c.alerterInit.Do(func() {
		c.alerter, err = c.initAlerter()
		if err != nil {
			c.initErrors["alerter"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["alerter"]; exists {
		return nil, storedErr
	}
	return c.alerter, nil
}

// HospitalUseCase returns the hospital use case wrapped with metrics.
func (c *Container) HospitalUseCase() (hospitalUseCase.HospitalUseCase, error) {
	var err error
	c.hospitalUseCaseInit.Do(func() {
		c.hospitalUseCase, err = c.initHospitalUseCase()
		if err != nil {
			c.initErrors["hospitalUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["hospitalUseCase"]; exists {
		return nil, storedErr
	}
	return c.hospitalUseCase, nil
}

// RecordHandler returns the HTTP handler for hospital records.
func (c *Container) RecordHandler() (*hospitalHTTP.RecordHandler, error) {
	var err error
	c.recordHandlerInit.Do(func() {
		c.recordHandler, err = c.initRecordHandler()
		if err != nil {
			c.initErrors["recordHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recordHandler"]; exists {
		return nil, storedErr
	}
	return c.recordHandler, nil
}

// initRecordRepository creates the record repository based on the database driver.
func (c *Container) initRecordRepository() (hospitalUseCase.RecordRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for record repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return hospitalRepository.NewPostgreSQLRecordRepository(db), nil
	case "mysql":
		return hospitalRepository.NewMySQLRecordRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initAlerter creates the Sentry alerter when SentryDSN is set.
func (c *Container) initAlerter() (hospitalUseCase.Alerter, error) {
	if c.config.SentryDSN == "" {
		return hospitalUseCase.NewNoOpAlerter(), nil
	}

	alerter, err := hospitalUseCase.NewSentryAlerter(sentry.ClientOptions{
		Dsn:        c.config.SentryDSN,
		ServerName: c.config.WorkerName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry alerter: %w", err)
	}
	return alerter, nil
}

// initHospitalUseCase creates the hospital use case with all its dependencies. The outbox
// producer is wired as publisher only when dead-letter publication is enabled.
func (c *Container) initHospitalUseCase() (hospitalUseCase.HospitalUseCase, error) {
	recordRepository, err := c.RecordRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get record repository for hospital use case: %w", err)
	}

	alerter, err := c.Alerter()
	if err != nil {
		return nil, fmt.Errorf("failed to get alerter for hospital use case: %w", err)
	}

	var publisher hospitalUseCase.Publisher
	if c.config.HospitalPublishEnabled {
		producer, err := c.Producer()
		if err != nil {
			return nil, fmt.Errorf("failed to get producer for hospital use case: %w", err)
		}
		publisher = producer
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for hospital use case: %w", err)
	}

	useCase := hospitalUseCase.NewHospitalUseCase(
		hospitalUseCase.Config{
			PublishEnabled:  c.config.HospitalPublishEnabled,
			DeadLetterTopic: c.config.HospitalTopic,
		},
		recordRepository,
		publisher,
		alerter,
		c.Logger(),
	)

	return hospitalUseCase.NewHospitalUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initRecordHandler creates the record HTTP handler.
func (c *Container) initRecordHandler() (*hospitalHTTP.RecordHandler, error) {
	useCase, err := c.HospitalUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get hospital use case for record handler: %w", err)
	}

	return hospitalHTTP.NewRecordHandler(useCase, c.Logger()), nil
}
