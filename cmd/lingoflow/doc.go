// Command lingoflow is the CLI entry point for the pipeline: run, history,
// doctor, and config subcommands.
package main
