// Package render provides renderer implementations for the engine.
//
// Memory keeps the output tree in process and can serialize it, which is
// what the scenario harness, replay and the tests compare against.
// Recording wraps any renderer and keeps a copy of every committed log.
package render
