// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Command puffin transcodes files between DEFLATE and puff form.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/google/puffin"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "puffin",
		Short: "Transcode files between DEFLATE and puff form",
		Long: "puffin transcodes a DEFLATE bit stream into puff, a byte-aligned\n" +
			"restatement of the same stream designed to be cheap to binary-diff,\n" +
			"and back. It does not recompress or choose Huffman tables; it only\n" +
			"transcodes a stream an encoder already produced.",
		SilenceUsage: true,
	}
	root.AddCommand(newPuffCmd(), newHuffCmd())
	return root
}

func newPuffCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "puff [input]",
		Short: "Convert a DEFLATE stream to puff form",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transcode(cmd, args, output, puffin.Puff)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func newHuffCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "huff [input]",
		Short: "Convert a puff stream back to DEFLATE",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transcode(cmd, args, output, puffin.Huff)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func transcode(cmd *cobra.Command, args []string, output string, fn func(io.Reader, io.Writer) error) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("puffin: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("puffin: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := fn(in, out); err != nil {
		return fmt.Errorf("puffin: %w", err)
	}
	return nil
}
