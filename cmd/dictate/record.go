package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/orthocare/orthocare/internal/capture"
	"github.com/orthocare/orthocare/internal/dictation"
	"github.com/orthocare/orthocare/internal/extract"
	"github.com/orthocare/orthocare/internal/patients"
	"github.com/orthocare/orthocare/internal/transcribe"
)

type recordFlags struct {
	input       string
	rate        int
	channels    int
	maxDuration time.Duration
	realtime    bool
}

// defaultMaxDuration is the longest 48 kHz mono WAV recording the server
// accepts. Other formats are still capped by the recorder's size limit.
var defaultMaxDuration = capture.MaxDuration(capture.WAVEncoder{},
	capture.Format{SampleRate: 48000, Channels: 1}, transcribe.MaxAudioBytes)

func (f *recordFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.input, "input", "i", "-", `WAV file to dictate from, or "-" for raw s16le PCM on stdin`)
	fl.IntVar(&f.rate, "rate", 48000, "sample rate of stdin PCM")
	fl.IntVar(&f.channels, "channels", 1, "channel count of stdin PCM")
	fl.DurationVar(&f.maxDuration, "max-duration", defaultMaxDuration, "stop recording after this long")
	fl.BoolVar(&f.realtime, "realtime", false, "pace WAV input at playback speed")
}

func (f *recordFlags) device() capture.Device {
	if f.input == "-" {
		return capture.NewReaderDevice(os.Stdin, capture.Format{SampleRate: f.rate, Channels: f.channels})
	}
	return capture.WAVFileDevice{Path: f.input, Realtime: f.realtime}
}

func formCmd(g *globalFlags) *cobra.Command {
	var rf recordFlags
	var create bool
	cmd := &cobra.Command{
		Use:   "form",
		Short: "Dictate a whole patient form and print the populated fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api, err := g.session(ctx)
			if err != nil {
				return err
			}
			form := dictation.NewForm()
			if err := dictate(ctx, g.logger(), &rf, api, form); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(form.Values()); err != nil {
				return err
			}
			if !create {
				return nil
			}

			draft := patients.DraftFromFields(form.Fields())
			draft.Normalize()
			if err := draft.Validate(); err != nil {
				return fmt.Errorf("draft incomplete, not submitted: %w", err)
			}
			id, err := api.createPatient(ctx, draft)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "created patient", id)
			return nil
		},
	}
	rf.register(cmd)
	cmd.Flags().BoolVar(&create, "create", false, "submit the populated form as a new patient record")
	return cmd
}

func fieldCmd(g *globalFlags) *cobra.Command {
	var rf recordFlags
	cmd := &cobra.Command{
		Use:   "field <name>",
		Short: "Dictate a single field and print the verbatim text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !extract.Field(name).Valid() {
				return fmt.Errorf("unknown field %q", name)
			}
			ctx := cmd.Context()
			api, err := g.session(ctx)
			if err != nil {
				return err
			}
			form := dictation.NewForm()
			if err := dictate(ctx, g.logger(), &rf, api, form, dictation.SingleField(name)); err != nil {
				return err
			}
			v, _ := form.Get(name)
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
	rf.register(cmd)
	return cmd
}

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <text>",
		Short: "Extract form fields from a transcript locally",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			for _, a := range args[1:] {
				text += " " + a
			}
			out := make(map[string]string)
			fields := extract.Parse(text)
			for _, f := range fields.Present() {
				out[string(f)] = fields[f]
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

// dictate runs one recording session: it records until the input ends,
// the time limit passes or ctx is cancelled, then waits for transcription.
func dictate(ctx context.Context, log zerolog.Logger, rf *recordFlags, api *apiClient, form *dictation.Form, opts ...dictation.Option) error {
	var ctrl *dictation.Controller
	rec := capture.NewRecorder(rf.device(),
		capture.WithLogger(log),
		capture.WithTickHandler(func(elapsed int) {
			fmt.Fprintf(os.Stderr, "\rrecording %s", capture.FormatDuration(elapsed))
		}),
		capture.WithErrorHandler(func(err error) { ctrl.RecordingFailed(err) }),
	)
	opts = append(opts,
		dictation.WithLogger(log),
		dictation.WithChangeHandler(func(s dictation.Snapshot) {
			if s.State == dictation.Processing {
				fmt.Fprintln(os.Stderr, "\rtranscribing...   ")
			}
		}),
	)
	ctrl = dictation.New(rec, api.transcriber(), form, opts...)
	defer ctrl.Cleanup()

	if err := ctrl.Start(ctx); err != nil {
		return errors.New(ctrl.LastError())
	}

	limit := time.NewTimer(rf.maxDuration)
	defer limit.Stop()
	select {
	case <-rec.Ended():
	case <-limit.C:
	case <-ctx.Done():
	}
	ctrl.Stop()

	// Transcription is bounded by the client timeout, not by ctx.
	if err := ctrl.Wait(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	if msg := ctrl.LastError(); msg != "" {
		return errors.New(msg)
	}
	return nil
}
