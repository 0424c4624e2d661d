// Package main provides the mobilenet command line tool.
//
// Usage:
//
//	mobilenet summary [-size 160] [-classes 1000]
//	mobilenet infer   [-batch 1] [-size 160] [-seed 1] [-weights model.safetensors] [-top 5] [-train]
//	mobilenet export  -out model.safetensors [-seed 1] [-classes 1000]
//	mobilenet version
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/mobilenet/backend/cpu"
	"github.com/born-ml/mobilenet/mobilenet"
	"github.com/born-ml/mobilenet/tensor"
)

const version = "v0.1.0"

var errUsage = errors.New("usage: mobilenet <summary|infer|export|version> [flags]")

func main() {
	log.SetFlags(0)
	log.SetPrefix("mobilenet: ")

	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "summary":
		return runSummary(args[1:], out)
	case "infer":
		return runInfer(args[1:], out)
	case "export":
		return runExport(args[1:], out)
	case "version":
		fmt.Fprintf(out, "mobilenet %s\n", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}
}

func buildModel(classes int, seed uint64) (*mobilenet.Model[*cpu.Backend], error) {
	cfg := mobilenet.DefaultConfig()
	cfg.NumClasses = classes
	cfg.Seed = seed
	return mobilenet.NewWithConfig(cfg, cpu.New())
}

func runSummary(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	size := fs.Int("size", mobilenet.DefaultImageSize, "input height and width")
	classes := fs.Int("classes", mobilenet.DefaultClasses, "number of output classes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	model, err := buildModel(*classes, 1)
	if err != nil {
		return err
	}
	return model.WriteSummary(out, *size, *size)
}

func runInfer(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("infer", flag.ContinueOnError)
	batch := fs.Int("batch", 1, "number of images")
	size := fs.Int("size", mobilenet.DefaultImageSize, "input height and width")
	seed := fs.Uint64("seed", 1, "seed for weights and the synthetic input")
	classes := fs.Int("classes", mobilenet.DefaultClasses, "number of output classes")
	weights := fs.String("weights", "", "SafeTensors checkpoint to load")
	top := fs.Int("top", 5, "number of classes to print per image")
	train := fs.Bool("train", false, "normalize with batch statistics instead of running averages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *batch < 1 || *size < 1 {
		return fmt.Errorf("batch and size must be positive, got %d and %d", *batch, *size)
	}
	if *top < 0 {
		return fmt.Errorf("top must not be negative, got %d", *top)
	}

	model, err := buildModel(*classes, *seed)
	if err != nil {
		return err
	}
	if *weights != "" {
		if err := model.Load(*weights); err != nil {
			return err
		}
		log.Printf("loaded %s", *weights)
	}
	if !*train {
		model.Eval()
	}

	shape := tensor.Shape{*batch, mobilenet.InputChannels, *size, *size}
	x := tensor.Normal[float32](shape, 0, 1, rand.NewSource(*seed), model.Backend())

	start := time.Now()
	logits, err := model.Predict(x)
	if err != nil {
		return err
	}
	log.Printf("forward %v in %v", shape, time.Since(start).Round(time.Millisecond))

	numClasses := logits.Shape()[1]
	k := min(*top, numClasses)
	data := logits.Data()
	for n := range *batch {
		row := make([]float64, numClasses)
		for i, v := range data[n*numClasses : (n+1)*numClasses] {
			row[i] = float64(v)
		}
		fmt.Fprintf(out, "image %d:", n)
		for _, c := range topK(row, k) {
			fmt.Fprintf(out, " %d(%.4f)", c, row[c])
		}
		fmt.Fprintln(out)
	}
	return nil
}

// topK returns the indices of the k largest values, largest first.
func topK(values []float64, k int) []int {
	sorted := append([]float64(nil), values...)
	idx := make([]int, len(values))
	floats.Argsort(sorted, idx)

	result := make([]int, 0, k)
	for i := len(idx) - 1; i >= 0 && len(result) < k; i-- {
		result = append(result, idx[i])
	}
	return result
}

func runExport(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	path := fs.String("out", "", "destination SafeTensors file")
	seed := fs.Uint64("seed", 1, "initialization seed")
	classes := fs.Int("classes", mobilenet.DefaultClasses, "number of output classes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("export: -out is required")
	}

	model, err := buildModel(*classes, *seed)
	if err != nil {
		return err
	}
	if err := model.Save(*path); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d parameters to %s\n", model.NumParameters(), *path)
	return nil
}
