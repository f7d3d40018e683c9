// Package sqldocs exposes the artifact schema DDL bundles and the analytical
// query catalog directly from the docs tree.
package sqldocs

import _ "embed"

// SQLite contains the SQLite DDL bundle.
//
//go:embed sqlite.sql
var SQLite string

// Postgres contains the Postgres DDL bundle.
//
//go:embed postgres.sql
var Postgres string

// Queries contains the versioned analytical query catalog (YAML).
//
//go:embed queries.yaml
var Queries []byte
