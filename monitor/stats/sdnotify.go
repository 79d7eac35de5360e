/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package stats

import "github.com/coreos/go-systemd/daemon"

// SdNotifyReady notifies systemd that the monitor has completed
// startup and is ready to serve traffic.
func SdNotifyReady() error {
	// daemon.SdNotify returns one of:
	// (false, nil) - notification not supported (NOTIFY_SOCKET unset)
	// (false, err) - notification supported, but sending it failed
	// (true, nil)  - notification supported, data sent
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if !supported && err != nil {
		return err
	}
	return nil
}
