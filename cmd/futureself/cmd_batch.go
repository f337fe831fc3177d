package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/engine"
)

// batchEntry is one request in a batch file.
type batchEntry struct {
	AgentType          string          `json:"agentType"`
	Query              string          `json:"query"`
	Context            map[string]any  `json:"context,omitempty"`
	Hints              map[string]bool `json:"hints,omitempty"`
	SignatureAlgorithm string          `json:"signatureAlgorithm,omitempty"`
}

type batchOutput struct {
	AgentType string         `json:"agentType"`
	Query     string         `json:"query"`
	Result    *engine.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func newBatchCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.json>",
		Short: "Run a JSON array of requests concurrently",
		Long: "Reads [{\"agentType\": ..., \"query\": ..., \"context\": {...}}, ...] and runs\n" +
			"the requests with at most bridge.concurrency in flight. Prints one JSON\n" +
			"result per request, in input order.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, err := readBatch(args[0])
			if err != nil {
				return err
			}

			a, err := loadApp(root.configPath, root.logLevel)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			mem, err := a.memory(ctx)
			if err != nil {
				return err
			}
			e, err := a.engine(ctx, mem)
			if err != nil {
				return err
			}

			results := e.RunAll(ctx, reqs)
			out := make([]batchOutput, len(results))
			failed := 0
			for i, r := range results {
				out[i] = batchOutput{AgentType: string(r.Request.AgentType), Query: r.Request.Query, Result: r.Result}
				if r.Err != nil {
					out[i].Error = r.Err.Error()
					failed++
				}
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("batch: %d of %d requests failed", failed, len(results))
			}
			return nil
		},
	}
}

func readBatch(path string) ([]engine.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var entries []batchEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}

	reqs := make([]engine.Request, 0, len(entries))
	for i, en := range entries {
		alg, err := core.ParseSignatureAlgorithm(en.SignatureAlgorithm)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		reqs = append(reqs, engine.Request{
			AgentType:          core.AgentType(en.AgentType),
			Query:              en.Query,
			Context:            en.Context,
			Hints:              en.Hints,
			SignatureAlgorithm: alg,
		})
	}
	return reqs, nil
}
