// Package history reconstructs build records from the artifact directory.
//
// The builder writes one directory per project holding a <revision>.log per
// build and, when the build succeeded, a <revision>.tar.gz next to it.
// Nothing else is stored: every call rescans the tree, so results always
// match what is on disk.
package history
