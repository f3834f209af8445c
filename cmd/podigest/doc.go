// Package main hosts the podigest CLI entrypoint and command graph.
//
// `podigest run` starts the scheduling daemon that polls feeds and processes
// one episode per trigger. The remaining commands run the same pipeline steps
// once from the terminal, inspect and reset the episode store, download a
// single URL through the relay pool, and probe the proxy list.
//
// Keep this package lean: behaviour lives in the internal packages and is
// assembled by internal/pipeline; commands only parse flags and render output.
package main
