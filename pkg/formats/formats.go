// Package formats provides parsers for Quake 2 family map formats: the
// IBSP container in its Quake 2 and directional lightmap revisions, and
// the entity lump key/value text.
package formats
