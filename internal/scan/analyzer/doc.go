// Package analyzer stores uploaded artifacts on disk and runs the external
// analyzer against them.
//
// Artifact naming and command construction live together: the artifact name
// is substituted into the analyzer command without any shell escaping. That is
// only safe because every artifact name is generated here as 20 characters of
// [A-Za-z0-9] plus a fixed extension, and the Invoker refuses any path whose
// base name does not match that shape. The directory part of the path is never
// put into the command; the analyzer runs with the artifact directory as its
// working directory. Changing the naming scheme to include user supplied
// characters reopens command injection.
package analyzer
