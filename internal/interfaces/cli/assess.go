package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// NewAssessCmd creates the assess command.
func NewAssessCmd() *cobra.Command {
	var (
		behavior  string
		value     float64
		unit      string
		timestamp string
		failOn    string
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess a single behavior measurement",
		Long: "Score one measured behavior against the knowledge base and print the\n" +
			"per-region impact, the overall risk level and the resulting report.",
		Example: "  neurorisk assess -b reaction_time --value 400 -u milliseconds\n" +
			"  neurorisk assess -b screen_time --value 6 -u count -o json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			m, err := buildMeasurement(behavior, value, unit, timestamp)
			if err != nil {
				return err
			}
			var threshold *risk.Level
			if failOn != "" {
				l, err := risk.ParseLevel(failOn)
				if err != nil {
					return errors.InvalidParam(err.Error())
				}
				threshold = &l
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			backend, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			a, err := backend.Assess(ctx, m)
			if err != nil {
				return err
			}
			if err := PrintResult(cmd, assessmentView{a: a}); err != nil {
				return err
			}

			level := a.Result.RiskLevel
			if level >= risk.High {
				fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %s measurement is at %s risk\n", m.BehaviorID, strings.ToUpper(level.String()))
			}
			if threshold != nil && level >= *threshold {
				return fmt.Errorf("risk level %s reaches --fail-on %s", level, *threshold)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&behavior, "behavior", "b", "", "behavior id, e.g. reaction_time [REQUIRED]")
	cmd.Flags().Float64Var(&value, "value", 0, "measured value [REQUIRED]")
	cmd.Flags().StringVarP(&unit, "unit", "u", "", "unit of the value (count, seconds, milliseconds, ratio, score) [REQUIRED]")
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "observation time in RFC3339 (default: now)")
	cmd.Flags().StringVar(&failOn, "fail-on", "", "exit non-zero when the risk level is at or above this level")
	_ = cmd.MarkFlagRequired("behavior")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("unit")

	return cmd
}

func buildMeasurement(behavior string, value float64, unit, timestamp string) (impact.Measurement, error) {
	u, err := impact.ParseUnit(unit)
	if err != nil {
		return impact.Measurement{}, err
	}
	m := impact.Measurement{
		BehaviorID: strings.ToLower(strings.TrimSpace(behavior)),
		Value:      value,
		Unit:       u,
	}
	if timestamp != "" {
		ts, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return impact.Measurement{}, errors.InvalidParam(fmt.Sprintf("invalid --timestamp %q: expected RFC3339", timestamp))
		}
		m.Timestamp = ts
	}
	return m, nil
}

// NewBatchCmd creates the batch command.
func NewBatchCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Assess many measurements from a JSON file",
		Long: "Read a JSON array of measurements, or an object with a \"measurements\"\n" +
			"array, and assess every entry. Failures are reported per item.",
		Example: "  neurorisk batch -f measurements.json -o table\n" +
			"  cat measurements.json | neurorisk batch -f -",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			ms, err := decodeMeasurements(data)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			backend, err := cliCtx.Backend(ctx)
			if err != nil {
				return err
			}
			res, err := backend.AssessBatch(ctx, ms)
			if err != nil {
				return err
			}
			return PrintResult(cmd, batchView{inputs: ms, res: res})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "measurements file, or - for stdin [REQUIRED]")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "read measurements file")
	}
	return data, nil
}

func decodeMeasurements(data []byte) ([]impact.Measurement, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.InvalidParam("measurements input is empty")
	}

	var ms []impact.Measurement
	if data[0] == '[' {
		if err := json.Unmarshal(data, &ms); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode measurements")
		}
	} else {
		var wrapped struct {
			Measurements []impact.Measurement `json:"measurements"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode measurements")
		}
		ms = wrapped.Measurements
	}
	if len(ms) == 0 {
		return nil, errors.InvalidParam("no measurements to assess")
	}
	return ms, nil
}
