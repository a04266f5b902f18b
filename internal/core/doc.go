// Package core provides the domain models for incremental release publishing.
//
// # Design Principles
//
// All structures in this package adhere to the following constraints:
//
//  1. Discovery is pure: classifying a folder name never touches the disk.
//  2. Everything consumed for hashing or listing is sorted explicitly;
//     directory iteration order is never trusted.
//  3. A fingerprint covers path, size and modification time only. File
//     contents are never read.
//
// # Core Types
//
// ReleaseVersion: a release folder under the source root that passed
// classification.
// IncludedFile: a file selected for packaging by the InclusionResolver.
// Fingerprint: the digest deciding whether a release must be rebuilt.
package core
