// Package models defines the value types that flow through a checksum audit.
//
// The package contains two categories of types:
//
// 1. Repository descriptions: snapshots of remote state returned by the repository client
//   - [ObjectProfile] : A digital object with its content models
//   - [DatastreamProfile] : One datastream (or datastream version) with its checksum settings
//   - [DatastreamVersion] : An entry in a datastream's version history
//
// 2. Pipeline values: immutable records passed between goroutines
//   - [Task] : One datastream (optionally one version) to check or repair
//   - [ValidationResult] and [RepairResult] : The single [Result] produced for each Task
//   - [Summary] : Final run statistics
package models
