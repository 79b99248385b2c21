// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/duskshell/dusk/interp"
	"github.com/duskshell/dusk/syntax"
)

// checkRCPermissions refuses RC files that are world-writable or not
// owned by the invoking user or root, per spec §6's RC file contract.
func checkRCPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		// Windows has no POSIX owner/mode bits to check.
		return nil
	}
	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("%s: refusing to source a world-writable rc file", path)
	}
	if err := checkOwner(path, info); err != nil {
		return err
	}
	return nil
}

// loadRC sources path into r, if it exists and passes checkRCPermissions.
// A missing rc file is not an error; a present-but-unsafe one is.
func loadRC(ctx context.Context, r *interp.Runner, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := checkRCPermissions(path); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	file, err := syntax.NewParser().Parse(f, path)
	if err != nil {
		return fmt.Errorf("rc file: %w", err)
	}
	return r.Run(ctx, file)
}
