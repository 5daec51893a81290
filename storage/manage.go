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
	"fmt"
	"log"
	"path"
	"regexp"
	"sort"
	"strings"
)

const (
	megabyte = 1024 * 1024
	tempExt  = ".temp"
	aviExt   = ".avi"
)

// Files sharing a recording's base name that are deleted with it.
var sidecarExts = []string{".csv", ".srt"}

var ErrInsufficientSpace = errors.New("insufficient free storage space")

var reDayFolder = regexp.MustCompile(`^\d{8}$`)

type StorageConfig struct {
	MinFreeMB  uint64 `yaml:"min-free-mb"`
	AutoDelete bool   `yaml:"auto-delete"`
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		MinFreeMB:  100,
		AutoDelete: true,
	}
}

func freeMB(fsys FS) (uint64, error) {
	free, err := fsys.FreeSpace()
	if err != nil {
		return 0, err
	}
	return free / megabyte, nil
}

// CheckFreeSpace makes sure at least conf.MinFreeMB is available. With
// AutoDelete set the oldest day folders are removed until it is, except
// for keepDay.
func CheckFreeSpace(fsys FS, conf StorageConfig, keepDay string) error {
	free, err := freeMB(fsys)
	if err != nil {
		return fmt.Errorf("checking free space: %w", err)
	}
	if free >= conf.MinFreeMB {
		return nil
	}
	if !conf.AutoDelete {
		log.Printf("space left %dMB is less than minimum %dMB", free, conf.MinFreeMB)
		return ErrInsufficientSpace
	}

	for free < conf.MinFreeMB {
		days, err := ListDays(fsys)
		if err != nil {
			return err
		}
		oldest := ""
		for i := len(days) - 1; i >= 0; i-- {
			if days[i] != keepDay {
				oldest = days[i]
				break
			}
		}
		if oldest == "" {
			log.Printf("space left %dMB is less than minimum %dMB and nothing left to delete", free, conf.MinFreeMB)
			return ErrInsufficientSpace
		}
		log.Printf("deleting oldest folder: %s", oldest)
		if err := fsys.RemoveAll(oldest); err != nil {
			return err
		}
		if free, err = freeMB(fsys); err != nil {
			return fmt.Errorf("checking free space: %w", err)
		}
	}
	log.Printf("storage free space: %dMB", free)
	return nil
}

// ListDays returns the day folders, newest first.
func ListDays(fsys FS) ([]string, error) {
	entries, err := fsys.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var days []string
	for _, entry := range entries {
		if entry.IsDir() && reDayFolder.MatchString(entry.Name()) {
			days = append(days, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// ListRecordings returns the finished recordings in a day folder, newest
// first.
func ListRecordings(fsys FS, day string) ([]string, error) {
	entries, err := fsys.ReadDir(day)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), aviExt) {
			names = append(names, path.Join(day, entry.Name()))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Delete removes a day folder, or a recording together with its sidecars.
func Delete(fsys FS, name string) error {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	if clean == "" {
		return errors.New("deletion of the recording root is not permitted")
	}
	if reDayFolder.MatchString(clean) {
		log.Printf("deleting folder: %s", clean)
		return fsys.RemoveAll(clean)
	}
	if err := fsys.Remove(clean); err != nil {
		return err
	}
	log.Printf("deleted: %s", clean)
	base := strings.TrimSuffix(clean, path.Ext(clean))
	for _, ext := range sidecarExts {
		if fsys.Exists(base + ext) {
			if err := fsys.Remove(base + ext); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeleteTempFiles removes unfinished sessions left in the recording root.
func DeleteTempFiles(fsys FS) error {
	entries, err := fsys.ReadDir(".")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), tempExt) {
			if err := fsys.Remove(entry.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}
