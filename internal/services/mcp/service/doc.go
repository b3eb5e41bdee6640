// Package service hosts the SPAR MCP server over stdio or streamable HTTP
// and registers the domain tools on it.
package service
