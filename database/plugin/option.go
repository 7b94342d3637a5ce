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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const envVarPrefix = "SLIMY"

type PluginOptionType int

const (
	PluginOptionTypeNone PluginOptionType = iota
	PluginOptionTypeString
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

type PluginOption struct {
	DefaultValue any
	Dest         any
	Name         string
	Description  string
	Type         PluginOptionType
}

func (p *PluginOption) AddToFlagSet(
	fs *pflag.FlagSet,
	pluginType string,
	pluginName string,
) error {
	flagName := pluginType + "-" + pluginName + "-" + p.Name
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		if !ok {
			return fmt.Errorf("option %s: destination is not *string", p.Name)
		}
		def, _ := p.DefaultValue.(string)
		fs.StringVar(dest, flagName, def, p.Description)
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		if !ok {
			return fmt.Errorf("option %s: destination is not *bool", p.Name)
		}
		def, _ := p.DefaultValue.(bool)
		fs.BoolVar(dest, flagName, def, p.Description)
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		if !ok {
			return fmt.Errorf("option %s: destination is not *int", p.Name)
		}
		def, _ := p.DefaultValue.(int)
		fs.IntVar(dest, flagName, def, p.Description)
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok {
			return fmt.Errorf("option %s: destination is not *uint64", p.Name)
		}
		def, _ := p.DefaultValue.(uint64)
		fs.Uint64Var(dest, flagName, def, p.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
	return nil
}

// assign performs a type-checked assignment into the option destination
func (p *PluginOption) assign(value any) error {
	if p.Dest == nil {
		return fmt.Errorf("nil destination for option %s", p.Name)
	}
	// Config files and environment variables may carry any option as a string
	if strVal, ok := value.(string); ok && p.Type != PluginOptionTypeString {
		return p.assignString(strVal)
	}
	switch p.Type {
	case PluginOptionTypeString:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected string", p.Name)
		}
		dest, ok := p.Dest.(*string)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination type for option %s: expected *string", p.Name)
		}
		*dest = v
	case PluginOptionTypeBool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected bool", p.Name)
		}
		dest, ok := p.Dest.(*bool)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination type for option %s: expected *bool", p.Name)
		}
		*dest = v
	case PluginOptionTypeInt:
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected int", p.Name)
		}
		dest, ok := p.Dest.(*int)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination type for option %s: expected *int", p.Name)
		}
		*dest = v
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination type for option %s: expected *uint64", p.Name)
		}
		switch tv := value.(type) {
		case uint64:
			*dest = tv
		case int:
			if tv < 0 {
				return fmt.Errorf("invalid value for option %s: negative int", p.Name)
			}
			*dest = uint64(tv)
		default:
			return fmt.Errorf("invalid type for option %s: expected uint64 or int", p.Name)
		}
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
	return nil
}

func (p *PluginOption) assignString(value string) error {
	switch p.Type {
	case PluginOptionTypeString:
		return p.assign(value)
	case PluginOptionTypeBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		return p.assign(v)
	case PluginOptionTypeInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		return p.assign(v)
	case PluginOptionTypeUint:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("option %s: %w", p.Name, err)
		}
		return p.assign(v)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", p.Type, p.Name)
	}
}

// PopulateCmdlineOptions adds a flag for every option of every registered plugin
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for _, entry := range pluginEntries {
		for i := range entry.Options {
			if err := entry.Options[i].AddToFlagSet(fs, PluginTypeName(entry.Type), entry.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// envVarName returns the environment variable consulted for a plugin option,
// for example SLIMY_BLOB_BADGER_DATA_DIR
func envVarName(pluginType PluginType, pluginName, optionName string) string {
	name := strings.Join(
		[]string{envVarPrefix, PluginTypeName(pluginType), pluginName, optionName},
		"_",
	)
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// ProcessEnvVars applies plugin options found in the environment
func ProcessEnvVars() error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	var errs []error
	for _, entry := range pluginEntries {
		for i := range entry.Options {
			opt := &entry.Options[i]
			val, ok := os.LookupEnv(envVarName(entry.Type, entry.Name, opt.Name))
			if !ok {
				continue
			}
			if err := opt.assignString(val); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// ProcessConfig applies plugin options from a parsed config file. The map is
// keyed by plugin type name, then plugin name, then option name.
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	for pluginTypeName, plugins := range pluginConfig {
		pluginType := PluginTypeFromString(pluginTypeName)
		if pluginType == PluginTypeNone {
			return fmt.Errorf("unknown plugin type: %s", pluginTypeName)
		}
		for pluginName, options := range plugins {
			for optionName, value := range options {
				if err := SetPluginOption(pluginType, pluginName, optionName, value); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
