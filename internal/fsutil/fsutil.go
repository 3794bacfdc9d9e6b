// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package fsutil expands the home directory in paths given in the command line.
package fsutil

import (
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ExpandHome replaces a leading "~" (current user) or "~name" (user "name") by the home directory.
// Other paths, including the empty one, are returned unchanged.
func ExpandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	userName, rest, _ := strings.Cut(p[1:], "/")
	var (
		usr *user.User
		err error
	)
	if userName == "" {
		usr, err = user.Current()
	} else {
		usr, err = user.Lookup(userName)
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to find the home directory for %q", p)
	}
	return filepath.Join(usr.HomeDir, rest), nil
}

// ExpandHomeAll applies ExpandHome in place to each of the paths.
func ExpandHomeAll(paths ...*string) error {
	for _, p := range paths {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}
