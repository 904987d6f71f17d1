// Package vfs provides an in-memory tree of file-like resources and
// the mediated operations over it. Every operation goes through the
// interception entry point first, then resolves its handles through
// the lookup hook and installs new ones through the install hook, so
// the package doubles as the end-to-end surface of the mediation
// layer.
package vfs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/capgate-dev/capgate/internal/credential"
	"github.com/capgate-dev/capgate/internal/handle"
	"github.com/capgate-dev/capgate/internal/mediation"
	"github.com/capgate-dev/capgate/internal/object"
)

// ErrNotFound is returned when a path names no resource.
var ErrNotFound = errors.New("vfs: not found")

// Open modes understood by OpenAt and Write. They travel as plain
// call arguments, so policy guards can condition checks on them.
const (
	ModeCreate = "create"
	ModeAppend = "append"
)

// FS couples a handle table with an interceptor. One FS models one
// process's descriptor table.
type FS struct {
	ic    *mediation.Interceptor
	table *handle.Table
}

// New creates an FS over its own empty handle table.
func New(ic *mediation.Interceptor) *FS {
	return &FS{ic: ic, table: handle.NewTable(handle.DefaultCapacity)}
}

// Table exposes the underlying handle table.
func (fs *FS) Table() *handle.Table { return fs.table }

// Install places a resource or capability into the table, handing
// ownership of the caller's reference to the table.
func (fs *FS) Install(obj object.Object) (handle.Handle, error) {
	return fs.table.Install(obj)
}

// Close releases the handle.
func (fs *FS) Close(h handle.Handle) error {
	return fs.table.Close(h)
}

// OpenAt resolves path relative to the directory named by dirh and
// installs a handle for the target. Each resolution step runs the
// confinement gate; if the directory handle is a capability the new
// handle comes back wrapped with the directory's rights, courtesy of
// the armed pre-allocation consumed at install time. mode may be
// ModeCreate to create a missing leaf.
func (fs *FS) OpenAt(task *credential.Task, dirh handle.Handle, path, mode string) (handle.Handle, error) {
	if err := fs.ic.Intercept(task, fs.table, "openat", []any{dirh, path, mode}); err != nil {
		return 0, err
	}

	dir, err := mediation.LookupResource(task, fs.table, dirh)
	if err != nil {
		return 0, err
	}

	target, err := fs.walk(task, dir, path, mode == ModeCreate)
	if err != nil {
		return 0, err
	}

	obj := mediation.InstallObject(task, target.Retain())
	nh, err := fs.table.Install(obj)
	if err != nil {
		releaseInstallable(obj)
		return 0, fmt.Errorf("%w: %v", mediation.ErrResourceExhausted, err)
	}
	return nh, nil
}

// walk descends the tree segment by segment. The confinement gate
// sees the unresolved remainder at every step, so an embedded parent
// traversal is caught exactly where it occurs.
func (fs *FS) walk(task *credential.Task, dir *object.Resource, path string, create bool) (*object.Resource, error) {
	cur := dir
	remaining := path
	for remaining != "" {
		if err := mediation.CheckSegment(task, remaining); err != nil {
			return nil, err
		}

		seg, rest, _ := strings.Cut(remaining, "/")
		if seg == "" || seg == "." {
			remaining = rest
			continue
		}

		next := cur.Child(seg)
		if next == nil {
			if create && rest == "" {
				created := object.NewResource(seg)
				if err := cur.AddChild(created); err != nil {
					created.Release()
					return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
				}
				next = created
			} else {
				return nil, fmt.Errorf("%w: %q under %q", ErrNotFound, seg, cur.Name())
			}
		}
		cur = next
		remaining = rest
	}
	return cur, nil
}

// Read returns the payload behind h.
func (fs *FS) Read(task *credential.Task, h handle.Handle) ([]byte, error) {
	if err := fs.ic.Intercept(task, fs.table, "read", []any{h}); err != nil {
		return nil, err
	}
	res, err := mediation.LookupResource(task, fs.table, h)
	if err != nil {
		return nil, err
	}
	return res.ReadData(), nil
}

// Write replaces or, with ModeAppend, extends the payload behind h.
func (fs *FS) Write(task *credential.Task, h handle.Handle, data []byte, mode string) error {
	if err := fs.ic.Intercept(task, fs.table, "write", []any{h, len(data), mode}); err != nil {
		return err
	}
	res, err := mediation.LookupResource(task, fs.table, h)
	if err != nil {
		return err
	}
	if mode == ModeAppend {
		res.WriteData(append(res.ReadData(), data...))
	} else {
		res.WriteData(data)
	}
	return nil
}

// Stat describes the resource behind h.
func (fs *FS) Stat(task *credential.Task, h handle.Handle) (Info, error) {
	if err := fs.ic.Intercept(task, fs.table, "stat", []any{h}); err != nil {
		return Info{}, err
	}
	res, err := mediation.LookupResource(task, fs.table, h)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Name:      res.Name(),
		Directory: res.IsDirectory(),
		Size:      len(res.ReadData()),
	}, nil
}

// UnlinkAt removes the child named by path's final segment from the
// directory behind dirh.
func (fs *FS) UnlinkAt(task *credential.Task, dirh handle.Handle, path string) error {
	if err := fs.ic.Intercept(task, fs.table, "unlinkat", []any{dirh, path}); err != nil {
		return err
	}
	dir, err := mediation.LookupResource(task, fs.table, dirh)
	if err != nil {
		return err
	}

	if err := mediation.CheckSegment(task, path); err != nil {
		return err
	}
	parentPath, name := splitLast(path)
	if err := mediation.CheckSegment(task, name); err != nil {
		return err
	}

	parent := dir
	if parentPath != "" {
		parent, err = fs.walk(task, dir, parentPath, false)
		if err != nil {
			return err
		}
	}

	if !parent.RemoveChild(name) {
		return fmt.Errorf("%w: %q under %q", ErrNotFound, name, parent.Name())
	}
	return nil
}

// Info is the Stat result.
type Info struct {
	Name      string
	Directory bool
	Size      int
}

func splitLast(path string) (parent, name string) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

func releaseInstallable(obj object.Object) {
	switch v := obj.(type) {
	case *object.Capability:
		v.Release()
	case *object.Resource:
		v.Release()
	}
}
