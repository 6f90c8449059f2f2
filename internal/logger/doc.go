// Package logger provides component-scoped structured logging for yami.
//
// Each subsystem logs through its own component (registry, fetcher,
// downloader, innertube, ...) which can be switched on and off
// independently, in text, JSON or colored form:
//
//	log := logger.WithComponent(logger.ComponentFetcher)
//	log.Info("Downloaded", logger.Fields{"title": title, "res": "720p"})
//
// The `log:` section of config.yml maps onto LogConfig; YAMI_LOG_LEVEL,
// YAMI_LOG_FORMAT, YAMI_LOG_OUTPUT, YAMI_LOG_CALLER, YAMI_LOG_TIMESTAMP and
// YAMI_LOG_COMPONENTS override it. File outputs ("file:/var/log/yami.log")
// rotate by size or age when a rotation block is present.
package logger
