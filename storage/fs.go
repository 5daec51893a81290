// avi-recorder - record motion triggered MJPEG video into AVI files
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package storage is the file system the recordings live on. Names are
// slash separated and relative to the recording root.
package storage

import (
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"golang.org/x/sys/unix"
)

type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
	Name() string
}

type FS interface {
	// Create opens name for writing, truncating any existing file.
	Create(name string) (File, error)
	Open(name string) (File, error)
	Rename(oldName, newName string) error
	Remove(name string) error
	RemoveAll(name string) error
	Exists(name string) bool
	MkdirAll(name string) error
	ReadDir(name string) ([]fs.DirEntry, error)
	// FreeSpace returns the bytes available to an unprivileged writer.
	FreeSpace() (uint64, error)
}

// Dir is an FS rooted at a directory on the local file system.
type Dir struct {
	Root string
}

func NewDir(root string) *Dir {
	return &Dir{Root: root}
}

// Path maps a storage name to a local path that cannot escape the root.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.Root, filepath.FromSlash(path.Clean("/"+name)))
}

type osFile struct {
	*os.File
	name string
}

func (f *osFile) Name() string {
	return f.name
}

func (d *Dir) Create(name string) (File, error) {
	f, err := os.OpenFile(d.Path(name), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &osFile{File: f, name: name}, nil
}

func (d *Dir) Open(name string) (File, error) {
	f, err := os.Open(d.Path(name))
	if err != nil {
		return nil, err
	}
	return &osFile{File: f, name: name}, nil
}

func (d *Dir) Rename(oldName, newName string) error {
	return os.Rename(d.Path(oldName), d.Path(newName))
}

func (d *Dir) Remove(name string) error {
	return os.Remove(d.Path(name))
}

func (d *Dir) RemoveAll(name string) error {
	return os.RemoveAll(d.Path(name))
}

func (d *Dir) Exists(name string) bool {
	_, err := os.Stat(d.Path(name))
	return err == nil
}

func (d *Dir) MkdirAll(name string) error {
	return os.MkdirAll(d.Path(name), 0755)
}

func (d *Dir) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(d.Path(name))
}

func (d *Dir) FreeSpace() (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(d.Root, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
