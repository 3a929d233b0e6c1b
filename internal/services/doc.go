// Package services defines shared utilities consumed by the pipeline stages
// and the provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, segment indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     failure with errors.Is while the message keeps its stage context.
//
// Provider clients live in sub-packages (dashscope, evolink, removebg,
// localmatte) and share the retrying HTTP base in apiclient.
package services
