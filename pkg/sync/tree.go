package sync

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/sidkik/foldersync/pkg/diff"
	"github.com/sidkik/foldersync/pkg/errors"
)

// Stats counts the work done by one synchronization pass.
type Stats struct {
	FilesCopied    int
	FilesUpdated   int
	FilesUnchanged int
	FilesDeleted   int
	DirsCreated    int
	DirsDeleted    int
	Failures       int
	BytesWritten   int64
}

func (stats Stats) String() string {
	msg := fmt.Sprintf("Sync complete. Copied %d files, updated %d, removed %d, %d unchanged.",
		stats.FilesCopied, stats.FilesUpdated, stats.FilesDeleted, stats.FilesUnchanged)
	if stats.DirsCreated > 0 || stats.DirsDeleted > 0 {
		msg += fmt.Sprintf(" Created %d directories, removed %d.", stats.DirsCreated, stats.DirsDeleted)
	}
	if stats.BytesWritten > 0 {
		msg += fmt.Sprintf(" Wrote %s.", humanize.IBytes(uint64(stats.BytesWritten)))
	}
	if stats.Failures > 0 {
		msg += fmt.Sprintf(" %d failures.", stats.Failures)
	}
	return msg
}

// pass is the state of a single synchronization pass. Paths handed between
// its methods are relative to the source and replica roots.
type pass struct {
	*Synchronizer
	source, replica string
	stats           Stats
}

func (p *pass) sourcePath(rel string) string {
	return filepath.Join(p.source, rel)
}

func (p *pass) replicaPath(rel string) string {
	return filepath.Join(p.replica, rel)
}

// display returns the name used for rel in log messages.
func (p *pass) display(rel string) string {
	if rel == "." {
		return p.replica
	}
	return rel
}

func (p *pass) logf(format string, args ...interface{}) {
	p.log.Log(fmt.Sprintf(format, args...))
}

func (p *pass) fail(msg string, err error) {
	p.stats.Failures++
	p.log.LogError(msg, err)
}

// syncFolder makes the replica directory at rel match the source directory
// at rel, recursively.
func (p *pass) syncFolder(rel string) {
	exists, err := p.replicaFS.IsDir(p.replicaPath(rel))
	if err == nil && !exists {
		err = p.replicaFS.CreateDir(p.replicaPath(rel))
		if err == nil {
			p.stats.DirsCreated++
			p.logf("Created directory %s", p.display(rel))
		}
	}

	if err != nil {
		p.fail(fmt.Sprintf("Failed to create directory %s", p.display(rel)),
			errors.DirectoryCreateFailed{Path: rel, Err: err})
		return
	}

	p.syncFiles(rel)
	p.syncDirs(rel)
}

// syncFiles syncs the files directly inside the directory at rel.
func (p *pass) syncFiles(rel string) {
	sourceFiles, err := p.sourceFS.ListFiles(p.sourcePath(rel))
	if err != nil {
		p.fail(fmt.Sprintf("Failed to list files in source directory %s", p.display(rel)),
			errors.FileOperationFailed{Op: "list", Path: rel, Err: err})
		return
	}

	replicaFiles, err := p.replicaFS.ListFiles(p.replicaPath(rel))
	if err != nil {
		p.fail(fmt.Sprintf("Failed to list files in replica directory %s", p.display(rel)),
			errors.FileOperationFailed{Op: "list", Path: rel, Err: err})
		return
	}

	replicaDirs, err := p.replicaFS.ListDirs(p.replicaPath(rel))
	if err != nil {
		p.fail(fmt.Sprintf("Failed to list directories in replica directory %s", p.display(rel)),
			errors.FileOperationFailed{Op: "list", Path: rel, Err: err})
		return
	}

	// A replica directory with the same name as a source file has to go
	// before the file can be copied in its place.
	for _, name := range intersect(sourceFiles, replicaDirs) {
		p.deleteDir(filepath.Join(rel, name))
	}

	files := classify(sourceFiles, replicaFiles)
	for _, name := range files.missing {
		p.copyFile(filepath.Join(rel, name))
	}

	for _, name := range files.shared {
		p.updateFile(filepath.Join(rel, name))
	}

	for _, name := range files.abundant {
		p.deleteFile(filepath.Join(rel, name))
	}
}

// syncDirs recurses into the subdirectories of the directory at rel, and
// removes the replica subdirectories that no longer exist in the source.
func (p *pass) syncDirs(rel string) {
	sourceDirs, err := p.sourceFS.ListDirs(p.sourcePath(rel))
	if err != nil {
		p.fail(fmt.Sprintf("Failed to list directories in source directory %s", p.display(rel)),
			errors.FileOperationFailed{Op: "list", Path: rel, Err: err})
		return
	}

	replicaDirs, err := p.replicaFS.ListDirs(p.replicaPath(rel))
	if err != nil {
		p.fail(fmt.Sprintf("Failed to list directories in replica directory %s", p.display(rel)),
			errors.FileOperationFailed{Op: "list", Path: rel, Err: err})
		return
	}

	for _, name := range sourceDirs {
		p.syncFolder(filepath.Join(rel, name))
	}

	for _, name := range classify(sourceDirs, replicaDirs).abundant {
		p.deleteDir(filepath.Join(rel, name))
	}
}

func (p *pass) copyFile(rel string) {
	res, err := p.applier.Copy(p.replicaFS, p.replicaPath(rel), p.sourceFS, p.sourcePath(rel))
	if err != nil {
		p.fail(fmt.Sprintf("Failed to copy file %s", rel),
			errors.FileOperationFailed{Op: "copy", Path: rel, Err: err})
		return
	}

	p.stats.FilesCopied++
	p.stats.BytesWritten += res.BytesWritten
	p.logf("Copied file %s (%s)", rel, humanize.IBytes(uint64(res.BytesWritten)))
}

func (p *pass) updateFile(rel string) {
	src, dst := p.sourcePath(rel), p.replicaPath(rel)
	equal, err := p.comparator.Equal(p.sourceFS, src, p.replicaFS, dst)
	if err != nil {
		p.fail(fmt.Sprintf("Failed to compare file %s", rel),
			errors.FileOperationFailed{Op: "compare", Path: rel, Err: err})
		return
	}

	if equal {
		if err := p.refreshAttrs(src, dst); err != nil {
			p.fail(fmt.Sprintf("Failed to update attributes of %s", rel),
				errors.FileOperationFailed{Op: "update attributes", Path: rel, Err: err})
			return
		}
		p.stats.FilesUnchanged++
		return
	}

	oldSnap, err := p.chunker.Chunk(p.replicaFS, dst)
	if err != nil {
		p.fail(fmt.Sprintf("Failed to update file %s", rel),
			errors.FileOperationFailed{Op: "update", Path: rel, Err: errors.WithContext(err, "chunk replica")})
		return
	}

	newSnap, err := p.chunker.Chunk(p.sourceFS, src)
	if err != nil {
		p.fail(fmt.Sprintf("Failed to update file %s", rel),
			errors.FileOperationFailed{Op: "update", Path: rel, Err: errors.WithContext(err, "chunk source")})
		return
	}

	script := diff.Diff(oldSnap, newSnap)
	res, err := p.applier.Apply(p.replicaFS, dst, p.sourceFS, src, oldSnap, newSnap, script)
	if err != nil {
		p.fail(fmt.Sprintf("Failed to update file %s", rel),
			errors.FileOperationFailed{Op: "update", Path: rel, Err: err})
		return
	}

	p.stats.FilesUpdated++
	p.stats.BytesWritten += res.BytesWritten
	p.logf("Updated file %s (%s reused, %s transferred)", rel,
		humanize.IBytes(uint64(res.BytesReused)), humanize.IBytes(uint64(res.BytesInserted)))
}

func (p *pass) refreshAttrs(src, dst string) error {
	attrs, err := p.sourceFS.GetAttrs(src)
	if err != nil {
		return errors.WithContext(err, "stat source")
	}
	return p.replicaFS.SetAttrs(dst, attrs)
}

func (p *pass) deleteFile(rel string) {
	if err := p.replicaFS.DeleteFile(p.replicaPath(rel)); err != nil {
		p.fail(fmt.Sprintf("Failed to delete file %s", rel),
			errors.FileOperationFailed{Op: "delete", Path: rel, Err: err})
		return
	}

	p.stats.FilesDeleted++
	p.logf("Deleted file %s", rel)
}

func (p *pass) deleteDir(rel string) {
	if err := p.replicaFS.DeleteDir(p.replicaPath(rel)); err != nil {
		p.fail(fmt.Sprintf("Failed to delete directory %s", rel),
			errors.FileOperationFailed{Op: "delete directory", Path: rel, Err: err})
		return
	}

	p.stats.DirsDeleted++
	p.logf("Deleted directory %s", rel)
}
