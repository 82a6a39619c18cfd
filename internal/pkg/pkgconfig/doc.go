// Package pkgconfig provides a small abstraction for reading configuration values.
//
// The application expects config values to come from a concrete implementation
// (for example Viper). Business code should depend on the Config interface so it
// stays easy to test and does not care where values come from (file, env, etc).
//
// Values are read once at startup. Environment variables prefixed with APP_
// override file values, with dots in keys replaced by underscores
// (analyzer.timeout becomes APP_ANALYZER_TIMEOUT).
package pkgconfig
