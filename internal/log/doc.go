// Package log builds the structured logger used by webcrawler.
//
// The logger is a standard *slog.Logger whose handler:
//   - masks credentials that end up in log attributes (cookies,
//     authorization headers, passwords embedded in proxy or page URLs)
//   - writes text records to stderr and, optionally, to a size-rotated
//     log file
//
// # Usage
//
//	logger, closer, err := log.New(log.Options{Level: "info", File: "webcrawler.log"})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//	slog.SetDefault(logger)
package log
