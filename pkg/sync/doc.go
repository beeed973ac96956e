/*
The sync package implements foldersync's one-way sync algorithm. It makes a
replica directory tree identical to a source directory tree, both in structure
and in file contents.

A pass walks the two trees together, one directory at a time:
1) Files that only exist in the source are copied into the replica.
2) Files that exist in both are compared. If their contents are identical,
   only the file attributes are refreshed. Otherwise both versions are cut
   into fixed-size chunks, the chunk sequences are diffed, and the replica
   file is rebuilt from its own unchanged chunks plus the changed ranges of
   the source file.
3) Files that only exist in the replica are removed.
4) Subdirectories are synced recursively, and directories that only exist in
   the replica are removed.

Failures are isolated to the entry they happen on. They're logged, and the
pass moves on to the next entry. Only an invalid source or replica root aborts
a pass.

Replica files are never modified in place. New contents are written to a
temporary file next to the target, which then replaces the target, so an
interrupted pass leaves every file either at its old or at its new version.

A Synchronizer runs a single pass at a time. Its scratch buffers are reused
between files, and concurrent passes on the same Synchronizer wait for each
other.
*/
package sync
