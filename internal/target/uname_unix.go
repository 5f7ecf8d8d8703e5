// Copyright 2026 The precomp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package target

import "golang.org/x/sys/unix"

// unameMachine returns the uname(2) machine field, or "" if the call
// fails (the GOARCH mapping is used instead).
func unameMachine() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Machine[:])
}
