package orthocare

import _ "embed"

// SchemaSQL is the PostgreSQL schema applied to a fresh database.
//
//go:embed schema.sql
var SchemaSQL []byte

//go:embed openapi.yaml
var OpenAPISpec []byte
