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

package plugin

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type PluginType int

const (
	PluginTypeNone PluginType = iota
	PluginTypeBlob
	PluginTypeMetadata
)

// PluginTypeName returns the config/flag name for a plugin type
func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return ""
	}
}

// PluginTypeFromString maps a config/flag name back to a plugin type
func PluginTypeFromString(pluginTypeName string) PluginType {
	switch pluginTypeName {
	case "blob":
		return PluginTypeBlob
	case "metadata":
		return PluginTypeMetadata
	default:
		return PluginTypeNone
	}
}

// Environment carries the shared runtime dependencies handed to a plugin
// when it is instantiated
type Environment struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

type PluginEntry struct {
	NewFromOptionsFunc func(Environment) Plugin
	Name               string
	Description        string
	Options            []PluginOption
	Type               PluginType
}

var (
	pluginEntries      []PluginEntry
	pluginEntriesMutex sync.RWMutex
)

// Register adds a plugin to the registry. A later registration with the same
// type and name replaces the earlier one.
func Register(pluginEntry PluginEntry) {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	for i, entry := range pluginEntries {
		if entry.Type == pluginEntry.Type && entry.Name == pluginEntry.Name {
			pluginEntries[i] = pluginEntry
			return
		}
	}
	pluginEntries = append(pluginEntries, pluginEntry)
}

// GetPlugins returns the registered plugins of the given type
func GetPlugins(pluginType PluginType) []PluginEntry {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	ret := []PluginEntry{}
	for _, plugin := range pluginEntries {
		if plugin.Type == pluginType {
			ret = append(ret, plugin)
		}
	}
	return ret
}

// GetPlugin instantiates the named plugin from its current options. It
// returns nil if no such plugin is registered.
func GetPlugin(pluginType PluginType, name string, env Environment) Plugin {
	pluginEntriesMutex.RLock()
	var newFunc func(Environment) Plugin
	for _, plugin := range pluginEntries {
		if plugin.Type == pluginType && plugin.Name == name {
			newFunc = plugin.NewFromOptionsFunc
			break
		}
	}
	pluginEntriesMutex.RUnlock()
	if newFunc == nil {
		return nil
	}
	return newFunc(env)
}
