// Package config loads, normalizes, and validates podigest configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GROQ_TOKEN, HF_TOKEN, BOT_TOKEN, CHAT_ID and USE_PROXY. The Config type
// centralizes every knob the daemon and CLI need: proxy pool behaviour, the
// download retry budgets, provider credentials and cron schedules.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
