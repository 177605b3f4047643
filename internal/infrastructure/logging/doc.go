// Package logging builds the structured slog logger shared by the daemon,
// the CLI and the MCP front end.
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: info        # debug, info, warn, error
//	  format: json       # json or text
//	  output: stderr     # stdout, stderr or a file path
//
// Successful /rpc requests log at debug, so info is quiet under a polling
// MCP client. Attributes named token, secret, password, authorization or
// jwt_secret are always written as [redacted].
package logging
