package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Wallet
	out.Wallet = cfg.Wallet
	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// Book venues carry API credentials.
	if cfg.Markets.Book != nil {
		out.Markets.Book = make([]BookMarketConfig, len(cfg.Markets.Book))
		copy(out.Markets.Book, cfg.Markets.Book)
		for i := range out.Markets.Book {
			redact(&out.Markets.Book[i].ApiKey)
			redact(&out.Markets.Book[i].ApiSecret)
		}
	}

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Tokens != nil {
		out.Tokens = make([]TokenConfig, len(cfg.Tokens))
		copy(out.Tokens, cfg.Tokens)
	}
	if cfg.Markets.AMM != nil {
		out.Markets.AMM = make([]AMMMarketConfig, len(cfg.Markets.AMM))
		copy(out.Markets.AMM, cfg.Markets.AMM)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
