// Package domain defines the SPAR MCP tools and resources.
//
// Stateless tools run the engine in process against the loaded packs.
// Session tools call the session service over gRPC and are registered only
// when a session server address is configured.
package domain
