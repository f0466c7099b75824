package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/iggywire/internal/config"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/danmuck/iggywire/internal/protocol/session"
	"github.com/danmuck/iggywire/internal/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const decodeChunk = 32 * 1024

var decodeCmd = &cobra.Command{
	Use:   "decode <file|->",
	Short: "Decode a capture of raw request or response bytes",
	Long: `Decode a file of raw bytes from one direction of an Iggy connection.

With --responses, the input is read as requests and the responses file is decoded
afterwards through the same session, pairing every response with its request.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	key := "direction"
	decodeCmd.Flags().String(key, "request", wrapString("direction of the input bytes (request, response)"))
	key = "responses"
	decodeCmd.Flags().String(key, "", wrapString("file of response bytes to correlate with a request input"))
	addOutputFlags(decodeCmd)
	addDecodeFlags(decodeCmd)
}

func addOutputFlags(cmd *cobra.Command) {
	key := "format"
	cmd.Flags().String(key, config.FormatText, wrapString("output format (text, json)"))
	key = "fields"
	cmd.Flags().Bool(key, true, wrapString("include decoded payload fields in the output"))
}

func addDecodeFlags(cmd *cobra.Command) {
	key := "max-frame-bytes"
	cmd.Flags().Uint32(key, frame.DefaultLimits().MaxFrameBytes, wrapString("frames declaring more bytes halt their direction"))
	key = "log-frames"
	cmd.Flags().Bool(key, false, wrapString("log every decoded frame at debug level"))
}

func runDecode(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	dir, err := frame.ParseDirection(viper.GetString("direction"))
	if err != nil {
		return err
	}
	responses := viper.GetString("responses")
	if responses != "" && dir != frame.Request {
		return fmt.Errorf("--responses requires --direction request")
	}

	w, err := report.NewWriter(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.Fields)
	if err != nil {
		return err
	}
	s := session.NewSession(args[0], cfg.Decode.Session(), nil)

	in, closeIn, err := openInput(cmd, args[0])
	if err != nil {
		return err
	}
	defer closeIn()
	halt := decodeStream(s, w, dir, in)

	if responses != "" {
		f, err := os.Open(responses)
		if err != nil {
			return fmt.Errorf("open responses: %w", err)
		}
		defer f.Close()
		halt = errors.Join(halt, decodeStream(s, w, frame.Response, f))
		for _, u := range s.OnClose() {
			if err := w.Unanswered(s.ID(), u); err != nil {
				return err
			}
		}
	}
	return halt
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// decodeStream feeds r into one direction of s in fixed chunks and reports every
// message. It returns the halting fault, if any.
func decodeStream(s *session.Session, w *report.Writer, dir frame.Direction, r io.Reader) error {
	buf := make([]byte, decodeChunk)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			msgs, err := s.OnBytes(dir, buf[:n])
			for _, m := range msgs {
				if werr := w.Message(s.ID(), m); werr != nil {
					return werr
				}
			}
			if err != nil {
				if werr := w.Halt(s.ID(), dir, err); werr != nil {
					return werr
				}
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read %s input: %w", dir, rerr)
		}
	}
	if left := s.Buffered(dir); left > 0 {
		log.Warn().Str("direction", dir.String()).Int("bytes", left).Msg("decode input ends inside a frame")
	}
	return nil
}
