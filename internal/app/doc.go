// Package app contains the core application wiring. It defines the main App
// struct, its configuration, and the run lifecycle, decoupled from any
// specific entrypoint like the CLI or the socket server.
package app
