// Package pgconfig queries the PostgreSQL build configuration.
//
// pg_config answers one question per invocation: given a flag such as
// --pkglibdir it prints a single line. The Prober capability hides the
// subprocess so callers can substitute fixed answers in tests.
package pgconfig
