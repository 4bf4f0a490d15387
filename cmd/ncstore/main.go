// Command ncstore materializes a NetCDF file into a chunked-array store
// and appends new data to an existing one.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/batchatco/go-netcdf-store/ncstore/api"
	"github.com/batchatco/go-netcdf-store/ncstore/datamodel"
	"github.com/batchatco/go-netcdf-store/ncstore/dense"
	"github.com/batchatco/go-netcdf-store/ncstore/zarr"
)

var (
	flagOut       string
	flagName      string
	flagBackend   string
	flagUnlimited []string
	flagChunks    []string
	flagVar       string
	flagDim       string
)

func main() {
	root := &cobra.Command{
		Use:           "ncstore",
		Short:         "Materialize NetCDF datasets into chunked-array stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagOut, "out", ".", "output directory")
	root.PersistentFlags().StringVar(&flagName, "name", "", "array/group name (default: source base name)")
	root.PersistentFlags().StringVar(&flagBackend, "backend", "dense", "storage backend: dense or zarr")
	root.PersistentFlags().StringSliceVar(&flagUnlimited, "unlimited", nil, "dimensions to treat as unbounded")
	root.PersistentFlags().StringSliceVar(&flagChunks, "chunk", nil, "per-dimension tile overrides, dim=size")

	create := &cobra.Command{
		Use:   "create <netcdf-file>",
		Short: "Create and populate a store from a NetCDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args[0])
		},
	}

	appendCmd := &cobra.Command{
		Use:   "append <target-netcdf> <new-netcdf>",
		Short: "Append new data onto an existing store",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(args[0], args[1])
		},
	}
	appendCmd.Flags().StringVar(&flagVar, "var", "", "variable to extend")
	appendCmd.Flags().StringVar(&flagDim, "dim", "", "dimension to extend along")
	appendCmd.MarkFlagRequired("var")
	appendCmd.MarkFlagRequired("dim")

	root.AddCommand(create, appendCmd)
	if err := root.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func modelOptions() ([]datamodel.Option, error) {
	opts := []datamodel.Option{datamodel.WithUnlimitedDims(flagUnlimited...)}
	for _, spec := range flagChunks {
		dim, size, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("bad --chunk %q, want dim=size", spec)
		}
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad --chunk %q: %w", spec, err)
		}
		opts = append(opts, datamodel.WithChunk(dim, n))
	}
	return opts, nil
}

func newWriter(model api.DataModel) (api.Writer, error) {
	switch flagBackend {
	case "dense":
		var opts []dense.Option
		if flagName != "" {
			opts = append(opts, dense.WithArrayName(flagName))
		}
		return dense.NewWriter(model, flagOut, opts...), nil
	case "zarr":
		var opts []zarr.Option
		if flagName != "" {
			opts = append(opts, zarr.WithGroupName(flagName))
		}
		return zarr.NewWriter(model, flagOut, opts...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", flagBackend)
	}
}

func runCreate(source string) error {
	opts, err := modelOptions()
	if err != nil {
		return err
	}
	model, err := datamodel.Open(source, opts...)
	if err != nil {
		return err
	}
	defer model.Close()

	w, err := newWriter(model)
	if err != nil {
		return err
	}
	return w.Create()
}

func runAppend(target, source string) error {
	opts, err := modelOptions()
	if err != nil {
		return err
	}
	targetModel, err := datamodel.Open(target, opts...)
	if err != nil {
		return err
	}
	defer targetModel.Close()

	newModel, err := datamodel.Open(source, opts...)
	if err != nil {
		return err
	}
	defer newModel.Close()

	w, err := newWriter(targetModel)
	if err != nil {
		return err
	}
	return w.Append(newModel, flagVar, flagDim)
}
