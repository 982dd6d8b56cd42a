// Package sqlscript produces the SQL side of an extension install.
//
// Assemble concatenates the fragments named by the load order into a single
// {name}--{version}.sql script. Each fragment is preceded by a three-line
// banner naming its source, and the output depends only on the fragment
// list and contents, never on directory enumeration order.
//
// StageUpgrades copies hand-written upgrade scripts ({name}--*.sql) verbatim
// next to the generated script.
package sqlscript
