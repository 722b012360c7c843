package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zvecio/zvec/internal/quantizer"
)

func newQuantizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quantize",
		Short: "Calibrate the entropy quantizer over a sample vector set",
	}
	cmd.AddCommand(newQuantizeCalibrateCmd())
	return cmd
}

func newQuantizeCalibrateCmd() *cobra.Command {
	var (
		width  int
		signed bool
		biased bool
	)
	cmd := &cobra.Command{
		Use:   "calibrate <vectors.json>",
		Short: "Feed a sample vector set through the entropy quantizer and print the trained scale/bias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vs, err := loadVectorSet(args[0])
			if err != nil {
				return err
			}
			if len(vs.Vectors) == 0 {
				return fmt.Errorf("%s: no vectors", args[0])
			}

			var w quantizer.Width
			switch width {
			case 8:
				w = quantizer.Width8
			case 4:
				w = quantizer.Width4
			default:
				return fmt.Errorf("--width must be 4 or 8, got %d", width)
			}

			q := quantizer.New(w, signed, biased)
			for _, v := range vs.Vectors {
				q.Feed(v)
			}
			err = logger.LogOperationWithFields("train_quantizer", map[string]interface{}{
				"vectors": len(vs.Vectors),
				"width":   width,
			}, q.Train)
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}

			logger.Info("quantizer calibrated", map[string]interface{}{
				"vectors": len(vs.Vectors),
				"width":   width,
				"scale":   q.Scale(),
				"bias":    q.Bias(),
			})
			fmt.Printf("scale=%g scale_reciprocal=%g bias=%g\n", q.Scale(), q.ScaleReciprocal(), q.Bias())
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 8, "quantized width in bits: 4 or 8")
	cmd.Flags().BoolVar(&signed, "signed", true, "use a signed code range")
	cmd.Flags().BoolVar(&biased, "biased", false, "fit an asymmetric bias term")
	return cmd
}
