// Package cmd implements the command-line interface for the dMesh
// distributed mesh database. It provides a hierarchical command structure
// for running multi-rank simulations and benchmarks.
//
// The package is organized into several subpackages:
//
//   - sim: Commands for running in-process multi-rank simulations and
//     benchmarking the synchronization protocol
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dmesh -help for a list of all commands.
package cmd
