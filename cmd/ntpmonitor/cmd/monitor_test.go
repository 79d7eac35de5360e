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

package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveIPv4FiltersToIPv4(t *testing.T) {
	addrs, err := resolveIPv4("127.0.0.1")
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	require.Equal(t, ntpPort, addrs[0].Port)
	require.NotNil(t, addrs[0].IP.To4())
}

func TestLoadConfigHostsSkipsRefclocks(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "ntpmonitor-cfg-*")
	require.NoError(t, err)
	_, err = f.WriteString("server ntp1.example.com\nserver 127.127.28.0\nserver ntp2.example.com prefer\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	hosts, err := loadConfigHosts(f.Name())
	require.NoError(t, err)
	require.Equal(t, []string{"ntp1.example.com", "ntp2.example.com"}, hosts)
}

func TestRunMonitorRejectsFewerThanTwoHosts(t *testing.T) {
	err := runMonitor([]string{"only-one-host"})
	require.Error(t, err)
}
