package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/bridge-go-sdk/core"
	"github.com/becomeliminal/bridge-go-sdk/engine"
)

type askFlags struct {
	context   map[string]string
	hints     map[string]string
	signature string
	asJSON    bool
}

func newAskCmd(root *rootFlags) *cobra.Command {
	flags := &askFlags{}
	cmd := &cobra.Command{
		Use:   "ask <agent-type> <query...>",
		Short: "Run one agent with schema planning and self-aware retries",
		Long: "Plans a response schema, executes the agent and retries while the agent\n" +
			"reports missing context, up to bridge.max_retries. With memory enabled the\n" +
			"question and answer are remembered.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(core.AgentType(args[0]), strings.Join(args[1:], " "))
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

			res, err := e.Run(ctx, req)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			if flags.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringToStringVar(&flags.context, "context", nil, "context entries (key=value, repeatable)")
	cmd.Flags().StringToStringVar(&flags.hints, "hint", nil, "planning hints (includeCode=false, ...)")
	cmd.Flags().StringVar(&flags.signature, "signature", "", "signature algorithm: ecdsa, ml-dsa-65, ml-dsa-87 or pq")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func (f *askFlags) request(agentType core.AgentType, query string) (engine.Request, error) {
	alg, err := core.ParseSignatureAlgorithm(f.signature)
	if err != nil {
		return engine.Request{}, err
	}
	req := engine.Request{
		AgentType:          agentType,
		Query:              query,
		SignatureAlgorithm: alg,
	}
	if len(f.context) > 0 {
		req.Context = engine.Context{}
		for k, v := range f.context {
			req.Context[k] = v
		}
	}
	if len(f.hints) > 0 {
		req.Hints = engine.Hints{}
		for k, v := range f.hints {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return engine.Request{}, fmt.Errorf("hint %s: %w", k, err)
			}
			req.Hints[k] = b
		}
	}
	return req, nil
}

func printResult(w io.Writer, res *engine.Result) {
	fmt.Fprintln(w, res.Output.Response)
	if res.Output.IncludesCode && res.Output.Code != "" && res.Output.Code != res.Output.Response {
		fmt.Fprintf(w, "\n%s\n", res.Output.Code)
	}
	fmt.Fprintln(w)

	status := "complete"
	if !res.Complete {
		status = "incomplete (" + string(res.Reason) + ")"
	}
	fmt.Fprintf(w, "%s after %d attempt(s), confidence %.2f\n", status, res.Attempts, res.Awareness.Confidence)
	if len(res.Awareness.MissingContext) > 0 {
		fmt.Fprintf(w, "missing context: %s\n", strings.Join(res.Awareness.MissingContext, "; "))
	}
	if res.Awareness.Question != nil {
		fmt.Fprintf(w, "question: %s\n", *res.Awareness.Question)
	}
	if sig := res.Output.Signature; sig != nil {
		fmt.Fprintf(w, "signed with %s\n", sig.Algorithm)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
