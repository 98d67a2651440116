// Package notifications delivers upload events via ntfy.
//
// The service publishes to the topic configured in config.toml and degrades
// to a no-op when no topic is set. StreakSink plugs the service into the
// status publisher so a run of failed uploads raises one alert and the first
// success afterwards raises one recovery message.
package notifications
