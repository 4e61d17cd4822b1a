package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is centralized process configuration, loaded from PSEPHOS_*
// environment variables. Keep infra values here and pass typed config into
// builders.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"psephos"`

	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	// ArtifactDir is where published election artifacts land. Empty keeps
	// the in-memory blob store, which is only useful for local runs.
	ArtifactDir string `envconfig:"ARTIFACT_DIR"`

	// RollFile points at the eligible-voter roll exported by the membership
	// system (JSON, one entry per voter with optional group tags).
	RollFile string `envconfig:"ROLL_FILE"`

	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	RelayBatchSize int           `envconfig:"RELAY_BATCH_SIZE" default:"100"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
	SMTPNoTLS    bool   `envconfig:"SMTP_NO_TLS" default:"false"`

	// Voting-email template. Lifecycle snapshots it into the election at
	// start, so changing these values never affects an already-open election.
	VotingMailSubject string `envconfig:"VOTING_MAIL_SUBJECT" default:"Your voting credential"`
	VotingMailHTML    string `envconfig:"VOTING_MAIL_HTML"`
	VotingMailText    string `envconfig:"VOTING_MAIL_TEXT"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("psephos", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
