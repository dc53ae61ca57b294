package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexcabrera/easel/internal/editor"
	"github.com/alexcabrera/easel/internal/flows"
)

func newEditCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit image files with generation flows",
		Long: `Edit image files with generation flows.

Each command loads the given images as layers of a canvas, runs one
generation job against them, and writes the resulting layer to --output.`,
	}

	cmd.AddCommand(editFillCmd(flags))
	cmd.AddCommand(editVaryCmd(flags))
	cmd.AddCommand(editRestyleCmd(flags))
	cmd.AddCommand(editGroupCmd(flags))

	return cmd
}

// editOptions are the flags shared by every edit command.
type editOptions struct {
	prompt string
	output string
}

func (o *editOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.prompt, "prompt", "p", "", "What to generate")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "File to write the result to")
	_ = cmd.MarkFlagRequired("prompt")
	_ = cmd.MarkFlagRequired("output")
}

type editRequest func(ctx context.Context, s *editor.Session) (*editor.Job, error)

// runEdit loads images as layers, runs one job, and writes its layer.
func runEdit(cmd *cobra.Command, flags *rootFlags, doc *editor.Document, opts editOptions, request editRequest) error {
	a, err := newApp(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer a.Close()

	policy, err := editor.ParsePolicy(a.cfg.ConflictPolicy)
	if err != nil {
		return err
	}
	session := editor.NewSession(a.runner, doc, editor.Options{
		Policy:         policy,
		MaxRetries:     a.cfg.Retry.MaxRetries,
		InitialBackoff: a.cfg.Retry.InitialBackoff,
		Timeout:        a.cfg.RequestTimeout,
		Logger:         a.logger,
	})

	job, err := request(cmd.Context(), session)
	if err != nil {
		return err
	}

	_, err = job.Wait(cmd.Context())
	if err != nil {
		// Interrupted: stop the job and let it settle as cancelled.
		if cmd.Context().Err() != nil {
			_ = session.Cancel(job.ID)
		}
		session.Wait()
		return printFlowError(cmd.ErrOrStderr(), err)
	}
	session.Wait()

	image, err := doc.LayerImage(job.LayerID())
	if err != nil {
		return err
	}
	if err := writeImage(opts.output, image); err != nil {
		return err
	}

	entry := doc.History()[len(doc.History())-1]
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: wrote %s (layer %s, %d attempt(s))\n",
		entry.Label, opts.output, job.LayerID(), job.Attempts())
	return nil
}

// loadLayers adds each image file to doc as a layer named after the file.
func loadLayers(doc *editor.Document, files []string) ([]string, error) {
	ids := make([]string, 0, len(files))
	for _, path := range files {
		uri, err := readImage(path)
		if err != nil {
			return nil, err
		}
		ids = append(ids, doc.AddLayer(path, uri))
	}
	return ids, nil
}

func editFillCmd(flags *rootFlags) *cobra.Command {
	var opts editOptions
	var width, height int

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Generate a background for a canvas of the given size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := editor.NewDocument(width, height)
			return runEdit(cmd, flags, doc, opts, func(ctx context.Context, s *editor.Session) (*editor.Job, error) {
				return s.RequestBackgroundFill(ctx, opts.prompt)
			})
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVar(&width, "width", 1024, "Canvas width in pixels")
	cmd.Flags().IntVar(&height, "height", 1024, "Canvas height in pixels")

	return cmd
}

func editVaryCmd(flags *rootFlags) *cobra.Command {
	var opts editOptions

	cmd := &cobra.Command{
		Use:   "vary <image>",
		Short: "Generate a variation of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := editor.NewDocument(0, 0)
			if _, err := loadLayers(doc, args); err != nil {
				return err
			}
			return runEdit(cmd, flags, doc, opts, func(ctx context.Context, s *editor.Session) (*editor.Job, error) {
				return s.RequestVariation(ctx, opts.prompt)
			})
		},
	}

	opts.register(cmd)

	return cmd
}

func editRestyleCmd(flags *rootFlags) *cobra.Command {
	var opts editOptions
	var reference, region string

	cmd := &cobra.Command{
		Use:   "restyle <image>",
		Short: "Restyle a region of an image after a reference image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRegion(region)
			if err != nil {
				return err
			}
			ref, err := readImage(reference)
			if err != nil {
				return err
			}

			doc := editor.NewDocument(0, 0)
			ids, err := loadLayers(doc, args)
			if err != nil {
				return err
			}
			if err := doc.Select(&r, ids...); err != nil {
				return err
			}
			return runEdit(cmd, flags, doc, opts, func(ctx context.Context, s *editor.Session) (*editor.Job, error) {
				return s.RequestSelectionEnhance(ctx, opts.prompt, ref)
			})
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&reference, "ref", "", "Reference style image")
	cmd.Flags().StringVar(&region, "region", "", "Region to restyle as x,y,width,height")
	_ = cmd.MarkFlagRequired("ref")
	_ = cmd.MarkFlagRequired("region")

	return cmd
}

func editGroupCmd(flags *rootFlags) *cobra.Command {
	var opts editOptions
	var reference string

	cmd := &cobra.Command{
		Use:   "group <image>...",
		Short: "Restyle several images as one group after a reference image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := readImage(reference)
			if err != nil {
				return err
			}

			doc := editor.NewDocument(0, 0)
			ids, err := loadLayers(doc, args)
			if err != nil {
				return err
			}
			if err := doc.Select(nil, ids...); err != nil {
				return err
			}
			return runEdit(cmd, flags, doc, opts, func(ctx context.Context, s *editor.Session) (*editor.Job, error) {
				return s.RequestGroupEnhance(ctx, opts.prompt, ref)
			})
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&reference, "ref", "", "Reference style image")
	_ = cmd.MarkFlagRequired("ref")

	return cmd
}

// parseRegion parses "x,y,width,height".
func parseRegion(s string) (flows.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return flows.Region{}, fmt.Errorf("invalid region %q: want x,y,width,height", s)
	}
	var n [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return flows.Region{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		n[i] = v
	}
	return flows.Region{X: n[0], Y: n[1], Width: n[2], Height: n[3]}, nil
}
