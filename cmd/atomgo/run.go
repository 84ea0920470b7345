package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/atomgo/automl"
	"github.com/YuminosukeSato/atomgo/dataset"
	"github.com/YuminosukeSato/atomgo/demo"
)

type runFlags struct {
	data   string
	scale  bool
	encode bool
	impute bool
	models string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the metrics table",
		Long: "Run the pipeline on the bundled dataset, or on --data (CSV or XLSX,\n" +
			"target in the last column), and print one row of metrics per model.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := g.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			pipeline, err := f.pipelineConfig()
			if err != nil {
				return err
			}
			ds, err := f.load()
			if err != nil {
				return err
			}

			progress := func(msg string) { fmt.Fprintln(cmd.ErrOrStderr(), msg) }
			res, err := newController(cfg, logger).OnRunClicked(cmd.Context(), pipeline, ds, progress)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.data, "data", "", "CSV or XLSX file (default: bundled dataset)")
	cmd.Flags().BoolVar(&f.scale, "scale", false, "scale the numeric features")
	cmd.Flags().BoolVar(&f.encode, "encode", true, "encode the categorical features")
	cmd.Flags().BoolVar(&f.impute, "impute", true, "impute the missing values")
	cmd.Flags().StringVar(&f.models, "models", "gnb,rf", "comma separated models: gnb, rf, et, xgb, lgb")
	return cmd
}

func (f *runFlags) pipelineConfig() (demo.PipelineConfig, error) {
	ids, err := automl.ParseModelIDs(f.models)
	if err != nil {
		return demo.PipelineConfig{}, err
	}
	return demo.PipelineConfig{
		Scale:  f.scale,
		Encode: f.encode,
		Impute: f.impute,
		Models: demo.NewModelSet(ids...),
	}, nil
}

func (f *runFlags) load() (*dataset.Dataset, error) {
	if f.data == "" {
		return demo.LoadDataset(true, nil)
	}
	file, err := os.Open(f.data)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return demo.LoadDataset(false, &demo.Upload{Filename: f.data, Body: file})
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	winnerStyle = cellStyle.Foreground(lipgloss.Color("10")).Bold(true)
)

func printResult(w io.Writer, res *demo.RunResult) {
	headers := append([]string{"model"}, res.Metrics.Columns...)
	winnerRow := -1
	rows := make([][]string, 0, len(res.Metrics.Rows))
	for i, r := range res.Metrics.Rows {
		row := []string{r.Model}
		for _, v := range r.Values {
			row = append(row, strconv.FormatFloat(v, 'f', 3, 64))
		}
		if r.ID == res.Winner.ID {
			winnerRow = i
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch row {
			case table.HeaderRow:
				return headerStyle
			case winnerRow:
				return winnerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "winner: %s (%s=%.3f)\n", res.Winner.Model, res.Metric, res.Winner.Score)

	failed := make([]string, 0, len(res.Failed))
	for id := range res.Failed {
		failed = append(failed, string(id))
	}
	sort.Strings(failed)
	for _, id := range failed {
		fmt.Fprintf(w, "failed: %s: %s\n", id, res.Failed[automl.ModelID(id)])
	}
}
