// Package jiramcp exposes a Jira instance to AI-agent hosts through the Model
// Context Protocol. It provides the JSON-RPC message schema, a session
// registry binding callers to upstream credentials and pending-message
// queues, a stateless request processor, and two server transports: stdio
// and HTTP with Server-Sent Events.
package jiramcp
