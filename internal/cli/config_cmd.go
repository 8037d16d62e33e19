// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - The "config" command.
//
// Examples:
//
//	rigchat config show
//	rigchat config get chat.stream_timeout_secs
//	rigchat config set default_model llama3.2
//	rigchat config set generation.temperature unset
//	rigchat config path
package cli

import (
	"fmt"
	"sort"

	"github.com/jeranaias/rigchat/internal/config"
)

// HandleConfigCommand runs "rigchat config".
func HandleConfigCommand(args Args) error {
	cfg, path, err := LoadConfig(args)
	if err != nil {
		return err
	}
	p := NewArgParser(args.Raw)

	switch p.Subcommand() {
	case "", "show":
		return OutputJSON(args.JSON, "config show", func() (interface{}, error) {
			if args.JSON {
				return cfg, nil
			}
			fmt.Println(TitleStyle.Render("Configuration"))
			fmt.Println(DimStyle.Render(path))
			fmt.Println()
			fmt.Print(cfg.String())
			return nil, nil
		})

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "rigchat config get chat.history_limit")
		}
		return OutputJSON(args.JSON, "config get", func() (interface{}, error) {
			v, err := cfg.Get(key)
			if err != nil {
				return nil, &ValidationError{Field: "key", Value: key, Reason: err.Error()}
			}
			if !args.JSON {
				if v == nil {
					fmt.Println(DimStyle.Render("(unset)"))
				} else {
					fmt.Println(v)
				}
			}
			return map[string]interface{}{"key": key, "value": v}, nil
		})

	case "set":
		key, value := p.Positional(1), JoinPositionalArgs(p, 2)
		if key == "" || p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "rigchat config set default_model llama3.2")
		}
		return OutputJSON(args.JSON, "config set", func() (interface{}, error) {
			if err := cfg.Set(key, value); err != nil {
				return nil, &ValidationError{Field: key, Value: value, Reason: err.Error()}
			}
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return nil, NewCommandError("config", "set", "save failed", err)
			}
			if !args.JSON {
				fmt.Printf("%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
			}
			return map[string]string{"key": key, "value": value, "path": path}, nil
		})

	case "keys":
		return OutputJSON(args.JSON, "config keys", func() (interface{}, error) {
			keys := config.GetAllKeys()
			sort.Strings(keys)
			if !args.JSON {
				for _, k := range keys {
					fmt.Println(k)
				}
			}
			return keys, nil
		})

	case "path":
		return OutputJSON(args.JSON, "config path", func() (interface{}, error) {
			if !args.JSON {
				fmt.Println(path)
			}
			return map[string]string{"path": path}, nil
		})

	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(), "unknown config subcommand",
			"rigchat config [show|get KEY|set KEY VALUE|keys|path]")
	}
}
