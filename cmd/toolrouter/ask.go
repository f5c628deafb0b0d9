package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/callbacks"
	"github.com/effective-security/toolrouter/config"
	"github.com/effective-security/toolrouter/orchestrator"
	"github.com/effective-security/toolrouter/pkg/llmfactory"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/llmutils"
	"github.com/effective-security/toolrouter/pkg/prompts"
	"github.com/effective-security/toolrouter/pkg/provider"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/toolrouter/tools/webcontent"
	"github.com/spf13/cobra"
)

type askOptions struct {
	format    string
	summarize bool
	url       string
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer one query and print the outcome",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case "text", "json", "yaml":
			default:
				return errors.Newf("unsupported format: %s", opts.format)
			}

			cfg, err := root.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), cmd.OutOrStdout(), cfg, root.verbose, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text|json|yaml")
	cmd.Flags().BoolVar(&opts.summarize, "summarize", false, "Answer with the content of the web page")
	cmd.Flags().StringVar(&opts.url, "url", "", "URL of the web page to summarize")
	return cmd
}

func runAsk(ctx context.Context, out io.Writer, cfg *config.Config, verbose bool, opts *askOptions, query string) error {
	var reg *registry.Registry
	var err error
	if opts.summarize {
		reg, err = registry.WebSummary(webcontent.New(cfg.WebOptions()...))
		if err == nil {
			query, err = registry.SummaryQuery(query, opts.url)
		}
	} else {
		reg, err = registry.TicketRouting(provider.New(cfg.ProviderOptions()...))
	}
	if err != nil {
		return err
	}

	model, err := llmfactory.New(&cfg.LLM).FlowModel(string(reg.Class()))
	if err != nil {
		return err
	}

	mode := callbacks.ModeDefault
	if verbose {
		mode = callbacks.ModeVerbose
	}
	scratchpad := callbacks.NewScratchpad(mode)
	cb := callbacks.NewFanout(scratchpad, callbacks.NewPackageLogger(logger))

	ctx = orchestrator.WithRequestContext(ctx, orchestrator.NewRequestContext("", reg.Class()))
	scratchpad.StartRun(ctx)

	outcome, err := orchestrator.New(model, orchestrator.WithCallback(cb)).Run(ctx, reg, query)
	stats, log := scratchpad.EndRun(ctx)
	if verbose {
		_, _ = out.Write(log)
	}
	if err != nil {
		return err
	}

	res := askResult{Outcome: *outcome, Stats: stats}
	if verbose {
		res.Messages = outcome.History
	}

	switch opts.format {
	case "json":
		fmt.Fprintln(out, llmutils.ToJSONIndent(res))
	case "yaml":
		fmt.Fprint(out, llmutils.ToYAML(res))
	default:
		if verbose {
			fmt.Fprint(out, "Available tools:", tools.GetDescriptions(reg.Tools()...))
			fmt.Fprint(out, prompts.ChatPromptValue(outcome.History).String())
		}
		fmt.Fprintln(out, outcome.Text)
	}
	return nil
}

type askResult struct {
	orchestrator.Outcome `yaml:",inline"`
	Stats                *callbacks.RunStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	// Messages is the conversation of the request, in verbose mode only
	Messages []llms.Message `json:"messages,omitempty" yaml:"-"`
}
