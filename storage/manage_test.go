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

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spaceFS frees 40MB for every day folder that has been removed.
type spaceFS struct {
	*Dir
	baseMB uint64
	days   []string
}

func (s *spaceFS) FreeSpace() (uint64, error) {
	free := s.baseMB
	for _, day := range s.days {
		if !s.Exists(day) {
			free += 40
		}
	}
	return free * megabyte, nil
}

func newSpaceFS(t *testing.T, baseMB uint64, days ...string) *spaceFS {
	dir := NewDir(t.TempDir())
	for _, day := range days {
		require.NoError(t, dir.MkdirAll(day))
		touch(t, dir, day+"/"+day+"_120000_SVGA_10_35.avi")
	}
	return &spaceFS{Dir: dir, baseMB: baseMB, days: days}
}

func touch(t *testing.T, fsys FS, name string) {
	f, err := fsys.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestEnoughSpaceDeletesNothing(t *testing.T) {
	fsys := newSpaceFS(t, 150, "20240101")
	require.NoError(t, CheckFreeSpace(fsys, DefaultStorageConfig(), "20240102"))
	assert.True(t, fsys.Exists("20240101"))
}

func TestOldestFoldersDeletedUntilEnoughSpace(t *testing.T) {
	fsys := newSpaceFS(t, 30, "20240101", "20240102", "20240103", "20240104")
	require.NoError(t, CheckFreeSpace(fsys, DefaultStorageConfig(), "20240104"))

	assert.False(t, fsys.Exists("20240101"))
	assert.False(t, fsys.Exists("20240102"))
	assert.True(t, fsys.Exists("20240103"))
	assert.True(t, fsys.Exists("20240104"))
}

func TestCurrentDayIsNeverEvicted(t *testing.T) {
	fsys := newSpaceFS(t, 10, "20240101")
	err := CheckFreeSpace(fsys, DefaultStorageConfig(), "20240101")
	assert.True(t, errors.Is(err, ErrInsufficientSpace))
	assert.True(t, fsys.Exists("20240101"))
}

func TestNoAutoDeleteReportsLowSpace(t *testing.T) {
	fsys := newSpaceFS(t, 10, "20240101")
	conf := DefaultStorageConfig()
	conf.AutoDelete = false
	err := CheckFreeSpace(fsys, conf, "20240102")
	assert.True(t, errors.Is(err, ErrInsufficientSpace))
	assert.True(t, fsys.Exists("20240101"))
}

func TestListing(t *testing.T) {
	fsys := newSpaceFS(t, 0, "20240102", "20240101")
	touch(t, fsys, "20240102/20240102_130000_SVGA_10_40.avi")
	touch(t, fsys, "20240102/20240102_130000_SVGA_10_40.csv")
	require.NoError(t, fsys.MkdirAll("data"))

	days, err := ListDays(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"20240102", "20240101"}, days)

	names, err := ListRecordings(fsys, "20240102")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20240102/20240102_130000_SVGA_10_40.avi",
		"20240102/20240102_120000_SVGA_10_35.avi",
	}, names)
}

func TestDeleteRemovesSidecars(t *testing.T) {
	fsys := newSpaceFS(t, 0, "20240101")
	base := "20240101/20240101_120000_SVGA_10_35"
	touch(t, fsys, base+".csv")
	touch(t, fsys, base+".srt")

	require.NoError(t, Delete(fsys, base+".avi"))
	assert.False(t, fsys.Exists(base+".avi"))
	assert.False(t, fsys.Exists(base+".csv"))
	assert.False(t, fsys.Exists(base+".srt"))
	assert.True(t, fsys.Exists("20240101"))

	require.NoError(t, Delete(fsys, "/20240101"))
	assert.False(t, fsys.Exists("20240101"))

	assert.Error(t, Delete(fsys, "/"))
}

func TestDeleteTempFiles(t *testing.T) {
	fsys := newSpaceFS(t, 0)
	touch(t, fsys, "current.avi.temp")
	touch(t, fsys, "keep.txt")

	require.NoError(t, DeleteTempFiles(fsys))
	assert.False(t, fsys.Exists("current.avi.temp"))
	assert.True(t, fsys.Exists("keep.txt"))
}

func TestPathStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	dir := NewDir(root)
	assert.Equal(t, filepath.Join(root, "etc", "passwd"), dir.Path("../../etc/passwd"))

	_, err := os.Stat(dir.Path("."))
	assert.NoError(t, err)
}
