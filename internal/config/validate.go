package config

import (
	validation "github.com/jellydator/validation"
)

// Validate rejects settings the dispatch components cannot run with. It does not check
// that external resources (database, key URI, Sentry DSN) are reachable.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ServerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.DBDriver, validation.Required, validation.In("postgres", "mysql")),
		validation.Field(&c.DBConnectionString, validation.Required),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.MetricsPort,
			validation.When(c.MetricsEnabled, validation.Required, validation.Max(65535),
				validation.NotIn(c.ServerPort).Error("must differ from SERVER_PORT"))),
		validation.Field(&c.MetricsNamespace, validation.When(c.MetricsEnabled, validation.Required)),
		validation.Field(&c.RateLimitRequestsPerSec, validation.When(c.RateLimitEnabled, validation.Required)),
		validation.Field(&c.RateLimitBurst, validation.When(c.RateLimitEnabled, validation.Required)),
		validation.Field(&c.OutboxBatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.OutboxPollInterval, validation.Required),
		validation.Field(&c.OutboxMaxRetries, validation.Min(0)),
		validation.Field(&c.HospitalTopic, validation.Required),
		validation.Field(&c.SchedulerThreads, validation.Required, validation.Min(1)),
		validation.Field(&c.SchedulerPollInterval, validation.Required),
		validation.Field(&c.SchedulerHeartbeatInterval, validation.Required),
		validation.Field(&c.SchedulerStaleTimeout,
			validation.Required,
			validation.Min(c.SchedulerHeartbeatInterval).Error("must be at least the heartbeat interval")),
		validation.Field(&c.SchedulerMaxFailures, validation.Required, validation.Min(1)),
		validation.Field(&c.SerializerCodec, validation.Required, validation.In("json", "msgpack")),
		validation.Field(&c.WorkerName, validation.Required),
	)
}
