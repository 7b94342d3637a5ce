// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/slimy-crypto/slimy/database/plugin"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPlugin struct{}

func (m *mockPlugin) Start() error { return nil }
func (m *mockPlugin) Stop() error  { return nil }

func newMockPlugin(plugin.Environment) plugin.Plugin { return &mockPlugin{} }

func TestRegister(t *testing.T) {
	pluginName := "test-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: newMockPlugin,
	})
	p := plugin.GetPlugin(plugin.PluginTypeBlob, pluginName, plugin.Environment{})
	require.NotNil(t, p)
	found := false
	for _, pl := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if pl.Name == pluginName {
			found = true
		}
	}
	assert.True(t, found, "plugin not in GetPlugins list")
	// Registering again replaces rather than duplicates
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: newMockPlugin,
	})
	count := 0
	for _, pl := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if pl.Name == pluginName {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestGetPluginNotFound(t *testing.T) {
	p := plugin.GetPlugin(plugin.PluginTypeBlob, "non-existent-"+t.Name(), plugin.Environment{})
	assert.Nil(t, p)
	_, err := plugin.StartPlugin(plugin.PluginTypeBlob, "non-existent-"+t.Name(), plugin.Environment{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestStartPluginError(t *testing.T) {
	pluginName := "error-plugin-" + t.Name()
	testErr := errors.New("boom")
	plugin.Register(plugin.PluginEntry{
		Type: plugin.PluginTypeMetadata,
		Name: pluginName,
		NewFromOptionsFunc: func(plugin.Environment) plugin.Plugin {
			return plugin.NewErrorPlugin(testErr)
		},
	})
	_, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, plugin.Environment{})
	require.ErrorIs(t, err, testErr)
}

func TestPluginOptions(t *testing.T) {
	var opts struct {
		dataDir string
		gc      bool
		workers int
		cache   uint64
	}
	pluginName := "options-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: newMockPlugin,
		Options: []plugin.PluginOption{
			{Name: "data-dir", Type: plugin.PluginOptionTypeString, DefaultValue: ".slimy", Dest: &opts.dataDir},
			{Name: "gc", Type: plugin.PluginOptionTypeBool, DefaultValue: true, Dest: &opts.gc},
			{Name: "workers", Type: plugin.PluginOptionTypeInt, DefaultValue: 2, Dest: &opts.workers},
			{Name: "cache-size", Type: plugin.PluginOptionTypeUint, DefaultValue: uint64(10), Dest: &opts.cache},
		},
	})

	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, pluginName, "data-dir", "/tmp/x"))
	assert.Equal(t, "/tmp/x", opts.dataDir)
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeBlob, pluginName, "data-dir", 123))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, pluginName, "cache-size", 42))
	assert.Equal(t, uint64(42), opts.cache)
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeBlob, pluginName, "cache-size", -1))
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, pluginName, "gc", "false"))
	assert.False(t, opts.gc)
	// Unknown options are ignored
	require.NoError(t, plugin.SetPluginOption(plugin.PluginTypeBlob, pluginName, "does-not-exist", "x"))
	require.Error(t, plugin.SetPluginOption(plugin.PluginTypeBlob, "nonexistent", "data-dir", "x"))

	t.Setenv("SLIMY_BLOB_"+strings.ToUpper(strings.ReplaceAll(pluginName, "-", "_"))+"_WORKERS", "7")
	require.NoError(t, plugin.ProcessEnvVars())
	assert.Equal(t, 7, opts.workers)

	require.NoError(t, plugin.ProcessConfig(map[string]map[string]map[string]any{
		"blob": {
			pluginName: {"data-dir": "/var/lib/slimy", "gc": true},
		},
	}))
	assert.Equal(t, "/var/lib/slimy", opts.dataDir)
	assert.True(t, opts.gc)
	require.Error(t, plugin.ProcessConfig(map[string]map[string]map[string]any{
		"bogus": {},
	}))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, plugin.PopulateCmdlineOptions(fs))
	require.NoError(t, fs.Parse([]string{"--blob-" + pluginName + "-cache-size=99"}))
	assert.Equal(t, uint64(99), opts.cache)
}
