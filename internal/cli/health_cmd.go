// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// health_cmd.go - The "health" command: is the Ollama server reachable.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeranaias/rigchat/internal/ollama"
)

// HealthReport is the --json payload of health.
type HealthReport struct {
	ollama.HealthStatus
	LatencyMs    int64    `json:"latency_ms"`
	Models       []string `json:"models,omitempty"`
	DefaultModel string   `json:"default_model,omitempty"`
	ModelFound   bool     `json:"default_model_installed"`
}

// errServerDown is returned so scripts can test the exit status.
var errServerDown = errors.New("ollama server is not reachable")

// HandleHealthCommand runs "rigchat health".
func HandleHealthCommand(args Args) error {
	app, err := NewApp(args, AppOptions{NoStore: true, NoSession: true})
	if err != nil {
		return err
	}
	defer app.CloseWithTimeout(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), app.Config.HealthTimeout()*2)
	defer cancel()

	return OutputJSON(args.JSON, "health", func() (interface{}, error) {
		start := time.Now()
		probe, err := app.Probe(ctx)
		if err != nil {
			return nil, err
		}
		report := HealthReport{
			HealthStatus: probe.Health,
			LatencyMs:    time.Since(start).Milliseconds(),
			DefaultModel: app.Config.DefaultModel,
		}
		for _, m := range probe.Models {
			report.Models = append(report.Models, m.Name)
			if m.Name == report.DefaultModel {
				report.ModelFound = true
			}
		}

		if !args.JSON {
			printHealth(report)
		}
		if !report.Connected {
			return report, fmt.Errorf("%w: %s", errServerDown, report.Error)
		}
		return report, nil
	})
}

func printHealth(r HealthReport) {
	fmt.Println(TitleStyle.Render("Ollama"))
	if r.Connected {
		fmt.Printf("%s %s (%dms)\n", RenderStatus("ok"), r.URL, r.LatencyMs)
	} else {
		fmt.Printf("%s %s: %s\n", RenderStatus("fail"), r.URL, r.Error)
		fmt.Println(DimStyle.Render("Try 'rigchat setup start'."))
		return
	}
	fmt.Println(RenderField("Models:", fmt.Sprintf("%d installed", len(r.Models))))

	switch {
	case r.DefaultModel == "":
		fmt.Printf("%s no default_model configured\n", RenderStatus("warn"))
	case r.ModelFound:
		fmt.Printf("%s default model %s is installed\n", RenderStatus("ok"), r.DefaultModel)
	default:
		fmt.Printf("%s default model %s is not installed (rigchat models pull %s)\n",
			RenderStatus("warn"), r.DefaultModel, r.DefaultModel)
	}
}
