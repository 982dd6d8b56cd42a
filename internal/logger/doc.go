// Package logger wraps zap to offer:
//   - a global sugared logger with a console encoder writing to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and configuration,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Every pipeline step takes a context and pulls its logger from it, so
// messages carry the stage and extension they belong to. Logs are kept off
// stdout, which belongs to the install progress stream.
package logger
