// SPDX-License-Identifier: MPL-2.0

// Package manifest reads and edits module manifest documents.
//
// A manifest is a hashtable-literal document: top-level key = value pairs
// where values are quoted strings, true/false booleans, parenthesized
// sequences, or nested { ... } braced tables. One designated top-level
// table ("metadata") holds nested sub-tables for extended metadata.
//
// Edits are byte-range splices against the parsed value node's source
// offsets, so every byte outside the edited span survives a write
// unchanged (comments, whitespace, and key ordering included). Documents
// are always persisted with a UTF-8 byte-order marker for compatibility
// with older consumers of the format.
//
// All path-based operations report failure as a boolean result rather
// than an error: callers probe manifests speculatively ("does this file
// already declare an exports list?") and a malformed or missing document
// is an expected answer, not an exceptional one.
package manifest

// FileName is the well-known manifest file name inside a module project
// root and inside an installed module version directory.
const FileName = "module.manifest"
