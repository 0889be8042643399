package logging

const (
	warningLogLevel = "WARNING"
	errorLogLevel   = "ERROR"
	debugLogLevel   = "DEBUG"

	// timestamps only show up in debug records
	timestampFormat = "2006/01/02 15:04:05"
)
