// Package deb assembles binary Debian packages from a declarative package
// description.
//
// # Design Philosophy
//
// A build is a single linear pass over a Package: rules stage files into a
// private scratch filesystem, the control metadata is rendered into the
// control-file grammar, and the staged trees are serialized into the exact
// binary container dpkg expects (an ar archive of debian-binary,
// control.tar.gz and data.tar.gz, in that order).
//
// The scratch filesystem is an explicitly constructed, explicitly disposed
// resource. A failed build leaves it behind for diagnosis; callers remove it
// with BuildContext.Remove after a successful pack. Independent builds may
// run concurrently since every BuildContext allocates its own
// process-unique scratch root.
//
// # Features
//
//   - Stage files, directories and symlinks through an ordered rule list,
//     each rule mutating the shared build context.
//   - Render control, conffiles, postinst, md5sums and copyright
//     deterministically from the package description.
//   - Write valid .deb archives, optionally PGP-signed (debsigs-style
//     _gpgorigin member) and optionally checked with lintian.
//   - Read .deb archives back for inspection.
package deb
