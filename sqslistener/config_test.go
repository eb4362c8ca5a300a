package sqslistener

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{
		QueueURL:         "https://sqs.us-east-1.amazonaws.com/000000000000/q",
		DeadLetterTarget: "https://sqs.us-east-1.amazonaws.com/000000000000/q-dlq",
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Concurrency)
	assert.Equal(t, 10, cfg.MaxMessagesPerPoll)
	assert.Equal(t, 20*time.Second, cfg.WaitTime)
	assert.Equal(t, 30*time.Second, cfg.VisibilityTimeout)
	assert.Equal(t, ExecutorAuto, cfg.Executor)
	assert.Equal(t, 5*time.Second, cfg.PollBackoff)
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{
			QueueURL:         "https://sqs.us-east-1.amazonaws.com/000000000000/q",
			DeadLetterTarget: "https://sqs.us-east-1.amazonaws.com/000000000000/q-dlq",
		}
	}

	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
	}{
		{
			name:   "missing queue url",
			mutate: func(c *Config) { c.QueueURL = "" },
			field:  "QueueURL",
		},
		{
			name:   "negative concurrency",
			mutate: func(c *Config) { c.Concurrency = -1 },
			field:  "Concurrency",
		},
		{
			name:   "too many messages per poll",
			mutate: func(c *Config) { c.MaxMessagesPerPoll = 11 },
			field:  "MaxMessagesPerPoll",
		},
		{
			name:   "negative messages per poll",
			mutate: func(c *Config) { c.MaxMessagesPerPoll = -3 },
			field:  "MaxMessagesPerPoll",
		},
		{
			name:   "wait time above sqs limit",
			mutate: func(c *Config) { c.WaitTime = 21 * time.Second },
			field:  "WaitTime",
		},
		{
			name:   "negative visibility timeout",
			mutate: func(c *Config) { c.VisibilityTimeout = -time.Second },
			field:  "VisibilityTimeout",
		},
		{
			name:   "negative retry budget",
			mutate: func(c *Config) { c.MaxRetries = -1 },
			field:  "MaxRetries",
		},
		{
			name:   "missing dead letter target",
			mutate: func(c *Config) { c.DeadLetterTarget = "" },
			field:  "DeadLetterTarget",
		},
		{
			name:   "unknown executor type",
			mutate: func(c *Config) { c.Executor = "fibers" },
			field:  "Executor",
		},
		{
			name:   "negative poll backoff",
			mutate: func(c *Config) { c.PollBackoff = -time.Second },
			field:  "PollBackoff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfigValidateAcceptsZeroRetries(t *testing.T) {
	cfg := Config{
		QueueURL:         "https://sqs.us-east-1.amazonaws.com/000000000000/q",
		DeadLetterTarget: "https://sqs.us-east-1.amazonaws.com/000000000000/q-dlq",
		MaxRetries:       0,
	}
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.MaxRetries)
}
