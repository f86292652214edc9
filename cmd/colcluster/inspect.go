package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/colcluster/blobstore"
	"github.com/hupe1980/colcluster/stream"
)

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print the columns of sample files",
		ArgsUsage: "[NAME...]",
		Description: "Decodes the named samples, or every sample under --prefix when no " +
			"name is given, and prints the column metadata the trainers would see.",
		Flags:  storeFlags(),
		Action: runInspect,
	}
}

type columnSummary struct {
	Tag     int32       `yaml:"tag"`
	Type    stream.Type `yaml:"type"`
	Width   int         `yaml:"width"`
	Streams int         `yaml:"streams"`
	Elts    int         `yaml:"elements"`
	Size    string      `yaml:"size"`
}

type sampleSummary struct {
	Name    string          `yaml:"name"`
	Streams int             `yaml:"streams"`
	Size    string          `yaml:"size"`
	Columns []columnSummary `yaml:"columns"`
}

func runInspect(c *cli.Context) error {
	ctx := c.Context
	store, err := openStore(ctx, c)
	if err != nil {
		return err
	}

	names := c.Args().Slice()
	if len(names) == 0 {
		all, err := store.List(ctx, c.String("prefix"))
		if err != nil {
			return err
		}
		for _, n := range all {
			if strings.HasSuffix(n, stream.SampleExt) {
				names = append(names, n)
			}
		}
		if len(names) == 0 {
			return errors.New("no samples found")
		}
	}

	out := make([]sampleSummary, 0, len(names))
	for _, name := range names {
		data, err := blobstore.Get(ctx, store, name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		sample, err := stream.DecodeSample(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		sum, err := summarize(name, sample)
		if err != nil {
			return err
		}
		out = append(out, sum)
	}

	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

func summarize(name string, sample stream.MultiInput) (sampleSummary, error) {
	md, err := stream.Aggregate([]stream.MultiInput{sample})
	if err != nil {
		return sampleSummary{}, fmt.Errorf("%s: %w", name, err)
	}

	type acc struct {
		streams, elts int
		bytes         uint64
	}
	per := make(map[stream.ColumnInfo]*acc, md.Len())
	for _, s := range sample {
		col, _ := s.Column()
		a := per[col]
		if a == nil {
			a = &acc{}
			per[col] = a
		}
		a.streams++
		a.elts += s.NumElts()
		a.bytes += uint64(s.ContentSize())
	}

	sum := sampleSummary{
		Name:    name,
		Streams: len(sample),
		Size:    humanize.IBytes(sample.Size()),
		Columns: make([]columnSummary, 0, md.Len()),
	}
	for _, col := range md.Columns() {
		a := per[col]
		sum.Columns = append(sum.Columns, columnSummary{
			Tag:     col.Tag,
			Type:    col.Type,
			Width:   col.Width,
			Streams: a.streams,
			Elts:    a.elts,
			Size:    humanize.IBytes(a.bytes),
		})
	}
	return sum, nil
}
