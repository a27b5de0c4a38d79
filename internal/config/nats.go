package config

type NatsConfig struct {
	Url             string
	Subject         string
	SnapshotSubject string
}

func NewNatsConfig() *NatsConfig {
	return &NatsConfig{
		Url:             getString("NATS_URL", ""),
		Subject:         getString("NATS_SUBJECT", "submissions.results"),
		SnapshotSubject: getString("NATS_SNAPSHOT_SUBJECT", "submissions.snapshot"),
	}
}

func (c *NatsConfig) Enabled() bool {
	return c.Url != ""
}
