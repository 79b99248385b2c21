// Copyright (c) 2017, Andrey Nering <andrey.nering@gmail.com>
// See LICENSE for licensing information

//go:build !unix

package main

import "os"

// checkOwner is a no-op on platforms without POSIX uid semantics.
func checkOwner(path string, info os.FileInfo) error {
	return nil
}
