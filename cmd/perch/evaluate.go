package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/perch/internal/api"
	"github.com/opensource-finance/perch/internal/policy"
	"github.com/opensource-finance/perch/internal/report"
	"github.com/opensource-finance/perch/internal/rules"
)

func evaluateCmd() *cobra.Command {
	var (
		file      string
		rulesFile string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one deposit request offline",
		Long: `Reads {"appointment": {...}, "record": {...}} as JSON and prints the
deposit decision. Omit "record" for a new client. Use --file - for stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return evaluate(cmd, file, rulesFile)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "request JSON file (- for stdin)")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "optional YAML rules file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func evaluate(cmd *cobra.Command, file, rulesFile string) error {
	var in io.Reader = cmd.InOrStdin()
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open request: %w", err)
		}
		defer f.Close()
		in = f
	}

	var req api.EvaluateRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}

	if err := req.Validate(); err != nil {
		return err
	}

	evaluator := policy.Default
	if rulesFile != "" {
		engine, err := rules.NewEngine()
		if err != nil {
			return err
		}
		if _, err := engine.Reload(cmd.Context(), rules.NewLoader(nil, rulesFile)); err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		evaluator = policy.NewEvaluator(engine)
	}

	res, err := evaluator.Explain(req.Appointment, req.Record)
	if err != nil {
		return err
	}

	out := api.EvaluateResponse{
		Decision:      res.Decision,
		DepositAmount: report.DepositAmount(req.Appointment.ServicePrice, res.Decision.Percentage).StringFixed(2),
		Score:         res.Score,
		Trace:         res.Trace,
	}
	out.Metadata.Version = Version

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
