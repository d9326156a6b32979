// Package hostyaml edits the Archipelago server's host.yaml options file.
//
// All edits go through the yaml node tree rather than a map round-trip, so
// the file keeps its comments, key order and value styles. Keys are dotted
// paths into nested mappings, such as general_options.output_path. Writes
// land in a temp file first and rename over the original.
//
// The file itself is never created here. The Archipelago server writes a
// fully commented default on first run, and that copy is worth keeping.
package hostyaml
